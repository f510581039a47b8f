package config

import "os"

const (
	teslaClientIDVar      = "TESLA_CLIENT_ID"
	teslaClientSecretVar  = "TESLA_CLIENT_SECRET"
	teslaRegionVar        = "TESLA_REGION"
	teslaPublicKeyVar     = "TESLA_PUBLIC_KEY"
	teslaPublicKeyPathVar = "TESLA_PUBLIC_KEY_PATH"
)

type TeslaConfig interface {
	GetTeslaClientID() string
	GetTeslaClientSecret() string
	GetTeslaRegion() string
	GetTeslaPublicKey() (string, error)
}

type Tesla struct{}

var _ TeslaConfig = Tesla{}

// GetTeslaClientID returns the server-wide Tesla developer client ID.
// When set, new sessions are pre-populated with it so users can skip
// the credential entry step.
func (Tesla) GetTeslaClientID() string {
	return GetEnv(teslaClientIDVar, "")
}

func (Tesla) GetTeslaClientSecret() string {
	return GetEnv(teslaClientSecretVar, "")
}

// GetTeslaRegion returns the Fleet API region shard: "na", "eu" or "cn".
func (Tesla) GetTeslaRegion() string {
	return GetEnv(teslaRegionVar, "na")
}

// GetTeslaPublicKey returns the PEM-encoded partner public key served
// at /.well-known/appspecific/com.tesla.3p.public-key.pem, preferring
// the inline env value over the file path.
func (Tesla) GetTeslaPublicKey() (string, error) {
	if key := GetEnv(teslaPublicKeyVar, ""); key != "" {
		return key, nil
	}
	path := GetEnv(teslaPublicKeyPathVar, "")
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
