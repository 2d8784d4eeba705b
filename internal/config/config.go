package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string

	BaseURL string

	Storage StorageConfig
	SMTP    SMTPConfig
}

type StorageConfig struct {
	// Driver selects the blob backend: "disk" or "s3"
	Driver   string
	DiskRoot string
	S3Bucket string
	S3Region string
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: getEnvOrPanic("DATABASE_URL"),

		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		Storage: StorageConfig{
			Driver:   getEnv("STORAGE_DRIVER", "disk"),
			DiskRoot: getEnv("STORAGE_DISK_ROOT", ""),
			S3Bucket: getEnv("STORAGE_S3_BUCKET", ""),
			S3Region: getEnv("STORAGE_S3_REGION", "us-east-1"),
		},

		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
		},
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvOrPanic(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		panic("required environment variable not set: " + key)
	}
	return value
}
