package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	License LicenseConfig `yaml:"license" envconfig:"LICENSE"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
}

// ServerConfig contains HTTP shell configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// LicenseConfig contains the activation subsystem configuration.
// Everything here is injected into the license manager constructor so
// tests can point at arbitrary servers without touching the process
// environment.
type LicenseConfig struct {
	ServerURL        string        `yaml:"server_url" envconfig:"SERVER_URL" default:"https://tkt-fastapi.onrender.com"`
	AppVersion       string        `yaml:"app_version" envconfig:"APP_VERSION" default:"1.0.0"`
	OfflineGraceDays int           `yaml:"offline_grace_days" envconfig:"OFFLINE_GRACE_DAYS" default:"1"`
	CheckTimeout     time.Duration `yaml:"check_timeout" envconfig:"CHECK_TIMEOUT" default:"12s"`
	PublicKeyFile    string        `yaml:"public_key_file" envconfig:"PUBLIC_KEY_FILE"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// Load loads configuration from environment variables and an optional
// config file. Environment takes precedence over the file.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("TKT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile := getConfigFilePath(); configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// OfflineGracePeriod returns the grace window as a duration.
func (lc LicenseConfig) OfflineGracePeriod() time.Duration {
	days := lc.OfflineGraceDays
	if days <= 0 {
		days = DefaultOfflineGraceDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes precedence)
func mergeConfigs(fileConfig, envConfig Config) Config {
	if envConfig.Server.Port == 0 {
		envConfig.Server.Port = fileConfig.Server.Port
	}
	if envConfig.License.ServerURL == "" {
		envConfig.License.ServerURL = fileConfig.License.ServerURL
	}
	if envConfig.License.AppVersion == "" {
		envConfig.License.AppVersion = fileConfig.License.AppVersion
	}
	if envConfig.License.PublicKeyFile == "" {
		envConfig.License.PublicKeyFile = fileConfig.License.PublicKeyFile
	}
	if envConfig.Logging.FilePath == "" {
		envConfig.Logging.FilePath = fileConfig.Logging.FilePath
	}
	return envConfig
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.License.ServerURL == "" {
		return fmt.Errorf("license server URL must not be empty")
	}
	if c.License.CheckTimeout <= 0 {
		c.License.CheckTimeout = LicenseCheckTimeout
	}
	if c.License.OfflineGraceDays <= 0 {
		c.License.OfflineGraceDays = DefaultOfflineGraceDays
	}
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}
	return nil
}

// getConfigFilePath returns the path to the config file, if one exists
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if FileExists(location) {
			return location
		}
	}

	return ""
}
