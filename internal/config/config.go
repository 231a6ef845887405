package config

type Config interface {
	EnvConfig
	OtpConfig
	NotesConfig
}

type EnvConfig interface {
	GetAppName() string
	GetBaseURL() string
	GetRedisURL() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	Otp
	Notes
}

func New() Config {
	return mainConfig{}
}
