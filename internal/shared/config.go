package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override values read from config.toml.
const (
	EnvBackendURL     = "MOVIEMEMO_API_BASE_URL"
	EnvCatalogToken   = "MOVIEMEMO_TMDB_BEARER_TOKEN"
	EnvIdentityAPIKey = "MOVIEMEMO_FIREBASE_API_KEY"
	EnvDatabasePath   = "MOVIEMEMO_DATABASE_PATH"
	EnvLogLevel       = "MOVIEMEMO_LOG_LEVEL"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Backend  BackendConfig  `toml:"backend"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Identity IdentityConfig `toml:"identity"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
}

// BackendConfig points at the profile & playlist REST backend.
type BackendConfig struct {
	BaseURL       string        `toml:"base_url"`
	TrailingSlash bool          `toml:"trailing_slash"`
	Timeout       time.Duration `toml:"timeout"`
}

// CatalogConfig contains TMDB settings.
type CatalogConfig struct {
	BaseURL     string        `toml:"base_url"`
	BearerToken string        `toml:"bearer_token"`
	Language    string        `toml:"language"`
	Timeout     time.Duration `toml:"timeout"`
	RateLimit   float64       `toml:"rate_limit"`
	Burst       int           `toml:"burst"`
	CacheTTL    time.Duration `toml:"cache_ttl"`
}

// IdentityConfig contains the identity provider's API key and the Google OAuth client.
type IdentityConfig struct {
	APIKey             string        `toml:"api_key"`
	GoogleClientID     string        `toml:"google_client_id"`
	GoogleClientSecret string        `toml:"google_client_secret"`
	RedirectURI        string        `toml:"redirect_uri"`
	Timeout            time.Duration `toml:"timeout"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port for [http.Server].
func (s ServerConfig) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// LoggingConfig controls the default log level.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// HasCatalogToken reports whether a real bearer token is configured.
func (c *Config) HasCatalogToken() bool {
	return c.Catalog.BearerToken != "" && !isPlaceholder(c.Catalog.BearerToken)
}

// HasIdentity reports whether the identity provider API key is configured.
func (c *Config) HasIdentity() bool {
	return c.Identity.APIKey != "" && !isPlaceholder(c.Identity.APIKey)
}

// HasGoogle reports whether the Google OAuth client is configured.
func (c *Config) HasGoogle() bool {
	return c.Identity.GoogleClientID != "" && !isPlaceholder(c.Identity.GoogleClientID) &&
		c.Identity.GoogleClientSecret != "" && !isPlaceholder(c.Identity.GoogleClientSecret)
}

// ApplyEnv overrides config values with any environment variables that are set.
func (c *Config) ApplyEnv() {
	c.Backend.BaseURL = envString(EnvBackendURL, c.Backend.BaseURL)
	c.Catalog.BearerToken = envString(EnvCatalogToken, c.Catalog.BearerToken)
	c.Identity.APIKey = envString(EnvIdentityAPIKey, c.Identity.APIKey)
	c.Database.Path = envString(EnvDatabasePath, c.Database.Path)
	c.Logging.Level = envString(EnvLogLevel, c.Logging.Level)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to [DefaultConfig] otherwise.
// Environment overrides are applied in both cases.
func LoadConfigOrDefault(path string) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}
	config.ApplyEnv()
	return config, nil
}

// DefaultConfig returns a Config with defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func isPlaceholder(v string) bool {
	return len(v) > 5 && v[:5] == "your_"
}
