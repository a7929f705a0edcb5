package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Backend selection values for STORAGE_BACKEND
const (
	BackendAuto     = "auto"
	BackendSQLite   = "sqlite"
	BackendKeyValue = "keyvalue"
	BackendMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	ServerPort     string
	StorageBackend string
	DatabasePath   string
	RedisAddr      string
	RedisPassword  string
	AWSRegion      string
	SESFromEmail   string
	SESFromName    string
	AlertEmail     string
	Debug          bool
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:     getEnv("PORT", "8080"),
		StorageBackend: getEnv("STORAGE_BACKEND", BackendAuto),
		DatabasePath:   getEnv("DB_PATH", "./familymeds.db"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail:   getEnv("SES_FROM_EMAIL", ""),
		SESFromName:    getEnv("SES_FROM_NAME", "FamilyMeds"),
		AlertEmail:     getEnv("ALERT_EMAIL", ""),
		Debug:          getEnv("DEBUG", "") != "",
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
