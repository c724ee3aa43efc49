package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" default:"development"`

	// HTTP
	HTTPPort    int      `env:"HTTP_PORT" default:"8080"`
	CORSOrigins []string `env:"CORS_ORIGINS" default:"*"`

	// Relay
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" default:"30s"`
	MsgRateLimit  int           `env:"MSG_RATE_LIMIT" default:"10"`
	MsgRateBurst  int           `env:"MSG_RATE_BURST" default:"20"`

	// Presence mirror (optional)
	PresenceEnabled bool   `env:"PRESENCE_ENABLED" default:"false"`
	RedisURL        string `env:"REDIS_URL" default:"redis://localhost:6379"`
	RedisPassword   string `env:"REDIS_PASSWORD"`

	// File uploads
	UploadDir       string `env:"UPLOAD_DIR" default:"./uploads"`
	UploadMaxSizeMB int    `env:"UPLOAD_MAX_SIZE_MB" default:"10"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"json"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// A missing .env file is fine, system env vars still apply
	if err := godotenv.Load(".env"); err != nil {
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	config := &Config{}

	if err := loadEnvString(&config.GoEnv, "GO_ENV", "development"); err != nil {
		return nil, err
	}

	// HTTP
	if err := loadEnvInt(&config.HTTPPort, "HTTP_PORT", 8080); err != nil {
		return nil, err
	}
	if err := loadEnvStringSlice(&config.CORSOrigins, "CORS_ORIGINS", []string{"*"}); err != nil {
		return nil, err
	}

	// Relay
	if err := loadEnvDuration(&config.SweepInterval, "SWEEP_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.MsgRateLimit, "MSG_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.MsgRateBurst, "MSG_RATE_BURST", 20); err != nil {
		return nil, err
	}

	// Presence
	if err := loadEnvBool(&config.PresenceEnabled, "PRESENCE_ENABLED", false); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisURL, "REDIS_URL", "redis://localhost:6379"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisPassword, "REDIS_PASSWORD", ""); err != nil {
		return nil, err
	}

	// Uploads
	if err := loadEnvString(&config.UploadDir, "UPLOAD_DIR", "./uploads"); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.UploadMaxSizeMB, "UPLOAD_MAX_SIZE_MB", 10); err != nil {
		return nil, err
	}

	// Logging
	if err := loadEnvString(&config.LogLevel, "LOG_LEVEL", "info"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogFormat, "LOG_FORMAT", "json"); err != nil {
		return nil, err
	}

	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvBool(target *bool, key string, defaultValue bool) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvStringSlice(target *[]string, key string, defaultValue []string) error {
	if value := os.Getenv(key); value != "" {
		*target = strings.Split(value, ",")
		// Trim whitespace from each element
		for i, v := range *target {
			(*target)[i] = strings.TrimSpace(v)
		}
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errors = append(errors, "HTTP_PORT must be between 1 and 65535")
	}

	if c.SweepInterval < time.Second {
		errors = append(errors, "SWEEP_INTERVAL must be at least 1s")
	}
	if c.MsgRateLimit < 1 {
		errors = append(errors, "MSG_RATE_LIMIT must be at least 1")
	}
	if c.MsgRateBurst < c.MsgRateLimit {
		errors = append(errors, "MSG_RATE_BURST must not be below MSG_RATE_LIMIT")
	}

	if c.PresenceEnabled && c.RedisURL == "" {
		errors = append(errors, "REDIS_URL is required when PRESENCE_ENABLED is true")
	}

	if c.UploadMaxSizeMB < 1 {
		errors = append(errors, "UPLOAD_MAX_SIZE_MB must be at least 1")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// UploadMaxBytes returns the upload size cap in bytes.
func (c *Config) UploadMaxBytes() int64 {
	return int64(c.UploadMaxSizeMB) * 1024 * 1024
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
