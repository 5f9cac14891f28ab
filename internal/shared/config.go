package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Environment variables that override values read from the TOML file.
const (
	EnvSpotifyClientID     = "PLAYHEAD_SPOTIFY_CLIENT_ID"
	EnvSpotifyClientSecret = "PLAYHEAD_SPOTIFY_CLIENT_SECRET"
	EnvSpotifyAccessToken  = "PLAYHEAD_SPOTIFY_ACCESS_TOKEN"
	EnvSpotifyRefreshToken = "PLAYHEAD_SPOTIFY_REFRESH_TOKEN"
	EnvDatabaseDSN         = "PLAYHEAD_DATABASE_DSN"
	EnvStoreURL            = "PLAYHEAD_STORE_URL"
	EnvLogLevel            = "PLAYHEAD_LOG_LEVEL"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Player      PlayerConfig      `toml:"player"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the last known token pair.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	TokenExpiry  time.Time `toml:"token_expiry,omitempty"`
}

// Token returns the stored credentials as an [oauth2.Token].
func (s SpotifyConfig) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.TokenExpiry,
	}
}

// Update stores a refreshed token pair. A token without a refresh token keeps the previous one.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidArgument)
	}
	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	s.TokenExpiry = token.Expiry
	return nil
}

// ClearTokens forgets the stored token pair. Client credentials are kept.
func (s *SpotifyConfig) ClearTokens() {
	s.AccessToken = ""
	s.RefreshToken = ""
	s.TokenExpiry = time.Time{}
}

// DatabaseConfig contains database connection settings.
//
// Path is used by the sqlite driver and DSN by the postgres driver.
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	Debug        bool   `toml:"debug"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Addr returns host:port for [http.Server].
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PlayerConfig tunes the reconciler, the poller and the progress bar.
type PlayerConfig struct {
	PollIntervalMs   int    `toml:"poll_interval_ms"`
	ToggleDebounceMs int    `toml:"toggle_debounce_ms"`
	TickIntervalMs   int    `toml:"tick_interval_ms"`
	RateLimitPerSec  int    `toml:"rate_limit_per_sec"`
	StoreURL         string `toml:"store_url"`
	UserID           string `toml:"user_id"`
}

func (p PlayerConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMs) * time.Millisecond
}

func (p PlayerConfig) ToggleDebounce() time.Duration {
	return time.Duration(p.ToggleDebounceMs) * time.Millisecond
}

func (p PlayerConfig) TickInterval() time.Duration {
	return time.Duration(p.TickIntervalMs) * time.Millisecond
}

// LogConfig contains log level and file rotation settings.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep their defaults and environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.ApplyEnv()
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
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

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes config as TOML and writes it to path.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadEnvFiles loads .env style files into the process environment.
//
// Missing files are skipped; variables already set in the environment win.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values with any PLAYHEAD_* variables present in the environment.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	set(&c.Credentials.Spotify.ClientID, EnvSpotifyClientID)
	set(&c.Credentials.Spotify.ClientSecret, EnvSpotifyClientSecret)
	set(&c.Credentials.Spotify.AccessToken, EnvSpotifyAccessToken)
	set(&c.Credentials.Spotify.RefreshToken, EnvSpotifyRefreshToken)
	set(&c.Database.DSN, EnvDatabaseDSN)
	set(&c.Player.StoreURL, EnvStoreURL)
	set(&c.Log.Level, EnvLogLevel)

	if c.Database.DSN != "" && c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
}

// DatabasePath returns the sqlite file path, resolving an empty path under $XDG_DATA_HOME.
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	p, err := xdg.DataFile("playhead/playhead.db")
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}
	return p, nil
}

// LogFilePath returns the configured log file or a default under $XDG_STATE_HOME.
func (c *Config) LogFilePath() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	p, err := xdg.StateFile("playhead/playhead.log")
	if err != nil {
		return "", fmt.Errorf("failed to resolve state directory: %w", err)
	}
	return p, nil
}

// Validate checks the values the player and storage layers depend on.
func (c *Config) Validate() error {
	var problems []string

	switch c.Database.Driver {
	case "", DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			problems = append(problems, "database.dsn is required for the postgres driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown database.driver %q", c.Database.Driver))
	}

	if c.Player.PollIntervalMs <= 0 {
		problems = append(problems, "player.poll_interval_ms must be positive")
	}
	if c.Player.TickIntervalMs <= 0 {
		problems = append(problems, "player.tick_interval_ms must be positive")
	}
	if c.Player.ToggleDebounceMs < 0 {
		problems = append(problems, "player.toggle_debounce_ms must not be negative")
	}
	if c.Player.RateLimitPerSec < 0 {
		problems = append(problems, "player.rate_limit_per_sec must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port out of range")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
