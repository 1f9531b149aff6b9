package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/existflow/cowork/internal/model"
	"gopkg.in/yaml.v3"
)

const (
	// BackendSheets talks to a Google spreadsheet with a service account
	BackendSheets = "sheets"
	// BackendHTTP talks to a cowork-tables server
	BackendHTTP = "http"

	DefaultPollSeconds = 5
	// MinPollSeconds keeps the poll loop from hammering the remote service
	MinPollSeconds = 2

	DefaultRequestTimeoutSeconds = 30
)

// Config holds user preferences and connection settings. It is loaded once at
// startup and passed to the components that need it.
type Config struct {
	Backend         string `yaml:"backend" json:"backend"`                   // sheets or http
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"` // Service account JSON or cowork-tables credentials
	SheetID         string `yaml:"sheet_id" json:"sheet_id"`                 // Spreadsheet ID or workbook name

	PollSeconds           int `yaml:"poll_seconds" json:"poll_seconds"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`

	CurrentUser  string   `yaml:"current_user" json:"current_user"` // Only used to filter the board
	Users        []string `yaml:"users" json:"users"`               // Roster of assignable people
	DefaultColor string   `yaml:"default_color" json:"default_color"`

	// Logging configuration
	LogLevel   string `yaml:"log_level" json:"log_level"`     // Log level: DEBUG, INFO, WARN, ERROR
	LogFile    string `yaml:"log_file" json:"log_file"`       // Path to log file
	LogConsole bool   `yaml:"log_console" json:"log_console"` // Enable console logging
}

// DefaultConfig returns default settings
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	logPath := ""
	if home != "" {
		logPath = filepath.Join(home, ".cowork", "logs", "cowork.log")
	}

	return &Config{
		Backend:               getEnv("COWORK_BACKEND", BackendSheets),
		CredentialsFile:       getEnv("COWORK_CREDENTIALS_FILE", ""),
		SheetID:               getEnv("COWORK_SHEET_ID", ""),
		PollSeconds:           getEnvInt("COWORK_POLL_SECONDS", DefaultPollSeconds),
		RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
		CurrentUser:           getEnv("COWORK_USER", ""),
		Users:                 append([]string(nil), model.DefaultUsers...),
		DefaultColor:          model.DefaultColor,
		LogLevel:              getEnv("COWORK_LOG_LEVEL", "INFO"),
		LogFile:               getEnv("COWORK_LOG_FILE", logPath),
		LogConsole:            getEnv("COWORK_LOG_CONSOLE", "false") == "true",
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

// Path returns the config file location, ~/.cowork/config.yaml unless
// COWORK_CONFIG points elsewhere
func Path() (string, error) {
	if p := os.Getenv("COWORK_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cowork", "config.yaml"), nil
}

// Load loads config from the default path
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads config from path, returning defaults if the file does not exist
func LoadFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.Users) == 0 {
		cfg.Users = append([]string(nil), model.DefaultUsers...)
	}

	return cfg, nil
}

// Save saves config to the default path
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes config to path
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate reports settings that can never work. Missing credentials are
// reported by the gateway when it connects.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSheets, BackendHTTP:
	default:
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendSheets, BackendHTTP)
	}
	if len(c.Users) == 0 {
		return fmt.Errorf("users roster is empty")
	}
	return nil
}

// PollInterval returns the merge interval with the floor applied
func (c *Config) PollInterval() time.Duration {
	s := c.PollSeconds
	if s <= 0 {
		s = DefaultPollSeconds
	}
	if s < MinPollSeconds {
		s = MinPollSeconds
	}
	return time.Duration(s) * time.Second
}

// RequestTimeout bounds a single remote round trip
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return DefaultRequestTimeoutSeconds * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Roster returns the assignable users
func (c *Config) Roster() model.Roster {
	return model.Roster(c.Users)
}

// ProjectColor returns color, or the configured default when empty
func (c *Config) ProjectColor(color string) string {
	if color != "" {
		return color
	}
	if c.DefaultColor != "" {
		return c.DefaultColor
	}
	return model.DefaultColor
}

// SameConnection returns true if both configs reach the same remote
func (c *Config) SameConnection(o *Config) bool {
	return c.Backend == o.Backend && c.CredentialsFile == o.CredentialsFile && c.SheetID == o.SheetID
}

// Set assigns a single key by its YAML name, used by `cowork config set`
func (c *Config) Set(key, value string) error {
	switch key {
	case "backend":
		c.Backend = value
	case "credentials_file":
		c.CredentialsFile = value
	case "sheet_id":
		c.SheetID = value
	case "current_user":
		c.CurrentUser = value
	case "default_color":
		c.DefaultColor = value
	case "log_level":
		c.LogLevel = value
	case "log_file":
		c.LogFile = value
	case "poll_seconds", "request_timeout_seconds":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer", key)
		}
		if key == "poll_seconds" {
			c.PollSeconds = n
		} else {
			c.RequestTimeoutSeconds = n
		}
	case "log_console":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("log_console must be true or false")
		}
		c.LogConsole = b
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}
