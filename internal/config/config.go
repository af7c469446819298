// Package config loads reflex settings from defaults, a YAML file, a .env
// file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	// DirName is the per-user directory holding config, database and logs.
	DirName = ".reflex"
	// FileName is the config file inside DirName.
	FileName = "config.yaml"
)

// Config holds settings for both the game client and the scoring service.
type Config struct {
	// APIAddr is the scoring service the game reports to.
	APIAddr string `yaml:"api_addr" env:"REFLEX_API_ADDR"`
	// ListenAddr is where `reflex serve` listens.
	ListenAddr string `yaml:"listen_addr" env:"REFLEX_LISTEN_ADDR"`
	// DBPath is the scoring service SQLite database.
	DBPath string `yaml:"db_path" env:"REFLEX_DB_PATH"`
	// LogLevel is a zerolog level name.
	LogLevel string `yaml:"log_level" env:"REFLEX_LOG_LEVEL"`
	// LogFile receives game logs while the TUI owns the terminal.
	LogFile string `yaml:"log_file" env:"REFLEX_LOG_FILE"`
	// ClientTimeout bounds each request to the scoring service.
	ClientTimeout time.Duration `yaml:"client_timeout" env:"REFLEX_CLIENT_TIMEOUT"`
	// AllowedOrigins lists browser origins the service accepts. Empty allows all.
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" env:"REFLEX_ALLOWED_ORIGINS" envSeparator:","`
}

// Dir returns ~/.reflex, or .reflex in the working directory when the home
// directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DirName
	}
	return filepath.Join(home, DirName)
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		APIAddr:       "http://127.0.0.1:3002",
		ListenAddr:    "127.0.0.1:3002",
		DBPath:        filepath.Join(dir, "scores.db"),
		LogLevel:      "info",
		LogFile:       filepath.Join(dir, "reflex.log"),
		ClientTimeout: 10 * time.Second,
	}
}

// LoadOptions selects the files Load reads. Empty fields use the defaults.
type LoadOptions struct {
	ConfigPath string
	EnvFile    string
}

// Load builds the effective configuration: defaults, then the YAML file,
// then variables from the .env file, then the process environment.
func Load(opts LoadOptions) (*Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = filepath.Join(Dir(), FileName)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFile loads configuration from a YAML file over the defaults. A missing
// file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves configuration to a YAML file, creating parent directories if needed.
func SaveConfig(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.APIAddr, "http://") && !strings.HasPrefix(c.APIAddr, "https://") {
		return fmt.Errorf("api_addr must be an http(s) URL, got %q", c.APIAddr)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.ClientTimeout <= 0 {
		return fmt.Errorf("client_timeout must be positive")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}
