package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar  = "PORT"
	hostEnvVar  = "HOST"
	appNameVar  = "APP_NAME"
	baseURLVar  = "BASE_URL"
	envVar      = "ENV"
	smsSIDVar   = "TWILIO_ACCOUNT_SID"
	smsTokenVar = "TWILIO_AUTH_TOKEN"
	smsFromVar  = "TWILIO_FROM_NUMBER"
)

type EnvConfig interface {
	GetPort() string
	GetHost() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
	GetSmsAccountSID() string
	GetSmsAuthToken() string
	GetSmsFromNumber() string
	SmsEnabled() bool
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "3000")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetHost() string {
	return GetEnv(hostEnvVar, "0.0.0.0")
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Tesla MCP")
}

// GetBaseURL returns the externally visible base URL of the gateway.
// It is used for OAuth redirect URIs, discovery metadata and the URLs
// handed back to users on the setup and success pages.
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:3000")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv(envVar)
	if env == "" {
		return "DEV"
	}
	return env
}

func (EnvVars) GetSmsAccountSID() string {
	return GetEnv(smsSIDVar, "")
}

func (EnvVars) GetSmsAuthToken() string {
	return GetEnv(smsTokenVar, "")
}

func (EnvVars) GetSmsFromNumber() string {
	return GetEnv(smsFromVar, "")
}

// SmsEnabled reports whether the optional SMS provider is fully
// configured. The SMS tools are only registered when it is.
func (e EnvVars) SmsEnabled() bool {
	return e.GetSmsAccountSID() != "" && e.GetSmsAuthToken() != "" && e.GetSmsFromNumber() != ""
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
