package config

type Config interface {
	EnvConfig
	QRConfig
	TokenConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	QR
	Tokens
	Storage
}

func New() Config {
	return mainConfig{}
}
