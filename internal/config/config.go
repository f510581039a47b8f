package config

type Config interface {
	EnvConfig
	TeslaConfig
	OAuthConfig
}

type mainConfig struct {
	EnvVars
	Tesla
	OAuth
}

func New() Config {
	return mainConfig{}
}
