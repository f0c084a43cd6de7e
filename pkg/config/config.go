package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig represents server configuration
type ServerConfig struct {
	Address  string         `yaml:"address"`
	TLS      TLSConfig      `yaml:"tls"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Hub      HubConfig      `yaml:"hub"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// TLSConfig represents TLS settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig represents database settings
type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite | mysql
	// Path is the file path for sqlite or the DSN for mysql
	Path string `yaml:"path"`
}

// AuthConfig represents token issuing and verification settings
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenLifetime time.Duration `yaml:"token_lifetime"`
}

// HubConfig represents real-time hub settings
type HubConfig struct {
	SendBufferSize  int `yaml:"send_buffer_size"`
	NotifyQueueSize int `yaml:"notify_queue_size"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Address: ":8080",
		TLS: TLSConfig{
			Enabled: false,
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "./parceltrack.db",
		},
		Auth: AuthConfig{
			JWTSecret:     "",
			TokenLifetime: 24 * time.Hour,
		},
		Hub: HubConfig{
			SendBufferSize:  64,
			NotifyQueueSize: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*ServerConfig, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string, config *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, config)
}

// applyEnvOverrides overrides configuration with PARCELTRACK_* environment variables
func applyEnvOverrides(config *ServerConfig) {
	if v := os.Getenv("PARCELTRACK_ADDRESS"); v != "" {
		config.Address = v
	}
	if v := os.Getenv("PARCELTRACK_DB_TYPE"); v != "" {
		config.Database.Type = v
	}
	if v := os.Getenv("PARCELTRACK_DB_PATH"); v != "" {
		config.Database.Path = v
	}
	if v := os.Getenv("PARCELTRACK_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("PARCELTRACK_TOKEN_LIFETIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Auth.TokenLifetime = d
		}
	}
	if v := os.Getenv("PARCELTRACK_SEND_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Hub.SendBufferSize = n
		}
	}
	if v := os.Getenv("PARCELTRACK_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("PARCELTRACK_LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}
}

// Validate checks the configuration for invalid values
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address must not be empty")
	}
	switch strings.ToLower(c.Database.Type) {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("tls enabled but cert_file or key_file missing")
	}
	if c.Auth.TokenLifetime <= 0 {
		return fmt.Errorf("token lifetime must be positive")
	}
	if c.Hub.SendBufferSize <= 0 {
		return fmt.Errorf("hub send buffer size must be positive")
	}
	if c.Hub.NotifyQueueSize <= 0 {
		return fmt.Errorf("hub notify queue size must be positive")
	}
	return nil
}
