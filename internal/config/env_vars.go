package config

import "os"

const (
	appNameVar  = "APP_NAME"
	baseURLVar  = "STICKIES_API_URL"
	redisURLVar = "REDIS_URL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "My Stickies")
}

// GetBaseURL returns the base URL of the Stickies API (e.g., "https://api.mystickies.app")
// All client requests, including the token refresh call, are made against it.
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

// GetRedisURL returns the Redis connection URL used by the optional
// Redis-backed credential store. Empty means in-memory credentials only.
func (EnvVars) GetRedisURL() string {
	return GetEnv(redisURLVar, "")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
