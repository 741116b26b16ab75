package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Ollama     OllamaConfig     `mapstructure:"ollama"`
	Posting    PostingConfig    `mapstructure:"posting"`
	Lookup     LookupConfig     `mapstructure:"lookup"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Data       DataConfig       `mapstructure:"data"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds the account database configuration
type DatabaseConfig struct {
	Path     string `mapstructure:"path"`
	SeedPath string `mapstructure:"seed_path"`
}

// OllamaConfig holds the completion service configuration
type OllamaConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PostingConfig holds the accounting endpoint configuration
type PostingConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Token    string        `mapstructure:"token"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LookupConfig holds the airport index and approver directory configuration
type LookupConfig struct {
	AirportURL      string        `mapstructure:"airport_url"`
	AirportUsername string        `mapstructure:"airport_username"`
	AirportPassword string        `mapstructure:"airport_password"`
	ApproverBaseURL string        `mapstructure:"approver_base_url"`
	ApproverToken   string        `mapstructure:"approver_token"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// ExtractionConfig holds invoice extraction defaults
type ExtractionConfig struct {
	RequestOwner    string `mapstructure:"request_owner"`
	DefaultApprover int    `mapstructure:"default_approver"`
}

// DataConfig holds the preference blob storage configuration
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/spa.db")
	viper.SetDefault("database.seed_path", "")

	// Completion service defaults
	viper.SetDefault("ollama.base_url", "http://localhost:11434")
	viper.SetDefault("ollama.model", "llama3.1:latest")
	viper.SetDefault("ollama.timeout", 120*time.Second)

	// Posting defaults
	viper.SetDefault("posting.timeout", 60*time.Second)

	// Lookup defaults
	viper.SetDefault("lookup.timeout", 30*time.Second)

	// Extraction defaults
	viper.SetDefault("extraction.request_owner", "ashakoor@algocraft.ai")
	viper.SetDefault("extraction.default_approver", 48)

	// Data defaults
	viper.SetDefault("data.dir", "data")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("posting.token", "POSTING_API_TOKEN")
	viper.BindEnv("lookup.airport_username", "AIRPORT_API_USERNAME")
	viper.BindEnv("lookup.airport_password", "AIRPORT_API_PASSWORD")
	viper.BindEnv("lookup.approver_token", "APPROVER_API_TOKEN")
	viper.BindEnv("ollama.base_url", "OLLAMA_BASE_URL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama.base_url is required")
	}
	if c.Ollama.Model == "" {
		return fmt.Errorf("ollama.model is required")
	}

	if c.Posting.Endpoint == "" {
		return fmt.Errorf("posting.endpoint is required")
	}
	if c.Posting.Token == "" {
		return fmt.Errorf("posting.token is required")
	}

	if c.Lookup.AirportURL == "" {
		return fmt.Errorf("lookup.airport_url is required")
	}
	if c.Lookup.ApproverBaseURL == "" {
		return fmt.Errorf("lookup.approver_base_url is required")
	}

	if c.Extraction.RequestOwner == "" {
		return fmt.Errorf("extraction.request_owner is required")
	}

	return nil
}
