package config

import "time"

type OAuthConfig interface {
	GetAuthCodeTimeout() time.Duration
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetSessionTTL() time.Duration
	GetCleanupInterval() time.Duration
	GetVehicleCacheTTL() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetAuthCodeTimeout() time.Duration {
	return 5 * time.Minute
}

func (OAuth) GetAccessTokenExpiry() time.Duration {
	return 1 * time.Hour
}

func (OAuth) GetRefreshTokenExpiry() time.Duration {
	return 30 * 24 * time.Hour // 30 days
}

func (OAuth) GetSessionTTL() time.Duration {
	return 24 * time.Hour
}

func (OAuth) GetCleanupInterval() time.Duration {
	return 1 * time.Hour
}

func (OAuth) GetVehicleCacheTTL() time.Duration {
	return 60 * time.Second
}
