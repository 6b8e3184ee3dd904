package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where LoadConfig looks when no path is given
const DefaultPath = "config/config.yaml"

// Config holds the application configuration
type Config struct {
	Environment   Environment             `yaml:"environment"`
	Test          TestConfig              `yaml:"test"`
	Catalog       CatalogConfig           `yaml:"catalog"`
	Ledger        LedgerConfig            `yaml:"ledger"`
	Reporting     ReportingConfig         `yaml:"reporting"`
	History       HistoryConfig           `yaml:"history"`
	Logging       LoggingConfig           `yaml:"logging"`
	Parameters    map[string]string       `yaml:"parameters"`
	Aliases       map[string][]string     `yaml:"aliases"`
	Lookups       map[string]LookupConfig `yaml:"lookups"`
	Augmentations []Augmentation          `yaml:"augmentations"`
}

// Environment holds environment-specific configuration
type Environment struct {
	BaseURL string     `yaml:"base_url"`
	Auth    AuthConfig `yaml:"auth"`
}

// AuthConfig holds authentication configuration. Username and Password are
// never read from the file; they come from the named environment variables.
type AuthConfig struct {
	LoginPath   string `yaml:"login_path"`
	UsernameEnv string `yaml:"username_env"`
	PasswordEnv string `yaml:"password_env"`

	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

// TestConfig holds test execution configuration
type TestConfig struct {
	Timeout             time.Duration `yaml:"timeout"`
	Pause               time.Duration `yaml:"pause"`
	SkipTransportErrors bool          `yaml:"skip_transport_errors"`
	Verbose             bool          `yaml:"verbose"`
	IdentityParam       string        `yaml:"identity_param"`

	// pauseSet records an explicit pause key, so "pause: 0s" disables pacing
	pauseSet bool
}

// UnmarshalYAML decodes the test section and notes whether pause was given
func (t *TestConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain TestConfig
	if err := value.Decode((*plain)(t)); err != nil {
		return err
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value == "pause" {
			t.pauseSet = true
		}
	}
	return nil
}

// CatalogConfig holds the location of the endpoint catalog
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig holds the location of the result ledger. An empty path means
// the ledger replaces the catalog, which is the rolling-state default.
type LedgerConfig struct {
	Path       string `yaml:"path"`
	KeepBackup bool   `yaml:"keep_backup"`
}

// ReportingConfig holds reporting configuration
type ReportingConfig struct {
	Format    []string `yaml:"format"`
	OutputDir string   `yaml:"output_dir"`
}

// HistoryConfig holds the optional SQL run-history database
type HistoryConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Table    string `yaml:"table"`
}

// Enabled reports whether a history database is configured
func (h HistoryConfig) Enabled() bool {
	return h.Type != ""
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	LogDir string `yaml:"log_dir"`
}

// LookupConfig describes a dependent lookup: fetch Path and read Field
// (a gjson path such as "data.0.id") from the JSON body.
type LookupConfig struct {
	Path  string `yaml:"path"`
	Field string `yaml:"field"`
}

// Augmentation adds headers and query parameters to any path containing Marker
type Augmentation struct {
	Marker  string            `yaml:"marker"`
	Headers map[string]string `yaml:"headers"`
	Query   map[string]string `yaml:"query"`
}

// LoadConfig loads the configuration from the config file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := decode(data)
	if err != nil {
		return nil, err
	}
	config.setDefaults()
	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Parse decodes YAML configuration and fills in defaults. It does not read
// the environment.
func Parse(data []byte) (*Config, error) {
	config, err := decode(data)
	if err != nil {
		return nil, err
	}
	config.setDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func decode(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &config, nil
}

func (c *Config) applyEnv() {
	if baseURL := os.Getenv("API_BASE_URL"); baseURL != "" {
		c.Environment.BaseURL = baseURL
	}
	c.Environment.Auth.Username = os.Getenv(c.Environment.Auth.UsernameEnv)
	c.Environment.Auth.Password = os.Getenv(c.Environment.Auth.PasswordEnv)
	if password := os.Getenv("HISTORY_DB_PASSWORD"); password != "" {
		c.History.Password = password
	}
}

func (c *Config) setDefaults() {
	if c.Environment.Auth.LoginPath == "" {
		c.Environment.Auth.LoginPath = "/auth/login"
	}
	if c.Environment.Auth.UsernameEnv == "" {
		c.Environment.Auth.UsernameEnv = "API_USERNAME"
	}
	if c.Environment.Auth.PasswordEnv == "" {
		c.Environment.Auth.PasswordEnv = "API_PASSWORD"
	}
	if c.Test.Timeout == 0 {
		c.Test.Timeout = 30 * time.Second
	}
	if c.Test.Pause == 0 && !c.Test.pauseSet {
		c.Test.Pause = time.Second
	}
	if c.Test.IdentityParam == "" {
		c.Test.IdentityParam = "userId"
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "endpoints.json"
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = c.Catalog.Path
	}
	if len(c.Reporting.Format) == 0 {
		c.Reporting.Format = []string{"json"}
	}
	if c.Reporting.OutputDir == "" {
		c.Reporting.OutputDir = filepath.Join("reports")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.History.Table == "" {
		c.History.Table = "probe_runs"
	}
	if c.Parameters == nil {
		c.Parameters = make(map[string]string)
	}
	if c.Aliases == nil {
		c.Aliases = map[string][]string{"userNameOrId": {"userId"}}
	}
	if c.Lookups == nil {
		c.Lookups = map[string]LookupConfig{
			"instructorId": {Path: "/api/instructor", Field: "data.0.id"},
		}
	}
	if c.Augmentations == nil {
		c.Augmentations = []Augmentation{
			{Marker: "Peloton-Platform", Headers: map[string]string{"Peloton-Platform": "web"}},
			{Marker: "user_query", Query: map[string]string{"user_query": "a"}},
		}
	}
}

// Validate checks the fields that have no sensible default
func (c *Config) Validate() error {
	if c.Environment.BaseURL == "" {
		return fmt.Errorf("environment.base_url is required")
	}
	if c.Test.Pause < 0 {
		return fmt.Errorf("test.pause must not be negative")
	}
	for name, l := range c.Lookups {
		if l.Path == "" || l.Field == "" {
			return fmt.Errorf("lookup %q needs both path and field", name)
		}
	}
	for i, a := range c.Augmentations {
		if a.Marker == "" {
			return fmt.Errorf("augmentation %d has no marker", i)
		}
	}
	return nil
}
