package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvOracleAPIKey is the environment variable consulted when oracle_api_key
// is not set in config.json.
const EnvOracleAPIKey = "VINYASA_ORACLE_API_KEY"

// Config holds application configuration.
type Config struct {
	// OracleBaseURL is the root URL of the sequence oracle service.
	// Endpoints are resolved relative to it (e.g. <base>/generate).
	OracleBaseURL string `json:"oracle_base_url,omitempty"`

	// OracleAPIKey is sent as a bearer token. Prefer the environment
	// variable (or ~/.vinyasa/.env) over storing it in config.json.
	OracleAPIKey string `json:"oracle_api_key,omitempty"`

	// OracleTimeoutSeconds bounds a single oracle HTTP call.
	OracleTimeoutSeconds int `json:"oracle_timeout_seconds,omitempty"`

	// DefaultHold is the timing string used when a step has none.
	DefaultHold string `json:"default_hold,omitempty"`

	// DefaultTransition is used between spliced flow-block poses that carry no transition text.
	DefaultTransition string `json:"default_transition,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// LogFile, when set, receives JSON log lines in addition to stderr.
	// Relative paths are resolved against the base directory.
	LogFile string `json:"log_file,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes excludes every MCP tool of a type (sequence, pose, flowblock).
	DisabledTypes []string `json:"disabled_types,omitempty"`

	// WebBind and WebPort configure the HTTP server for `vinyasa serve`.
	WebBind string `json:"web_bind,omitempty"`
	WebPort int    `json:"web_port,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		OracleBaseURL:        "http://127.0.0.1:8421/api",
		OracleTimeoutSeconds: 60,
		DefaultHold:          "5 breaths",
		DefaultTransition:    "Flow smoothly",
		LogLevel:             "info",
		WebBind:              "127.0.0.1",
		WebPort:              8420,
	}
}

// OracleTimeout returns the oracle timeout as a duration.
func (c *Config) OracleTimeout() time.Duration {
	if c.OracleTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.OracleTimeoutSeconds) * time.Second
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.vinyasa.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	if err := applyEnv(baseDir, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithRepo loads configuration from both global (~/.vinyasa) and repo (.vinyasa) directories.
// Repo config is found by walking upward from startDir to find the nearest .vinyasa/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	cfg := Merge(Merge(DefaultConfig(), global), repo)
	if err := applyEnv(globalDir, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindRepoConfig walks upward from startDir to find the nearest .vinyasa/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".vinyasa", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// applyEnv fills secrets from the environment. baseDir/.env is loaded first
// (without overriding variables already set in the process environment).
func applyEnv(baseDir string, cfg *Config) error {
	envPath := filepath.Join(baseDir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return err
		}
	}
	if cfg.OracleAPIKey == "" {
		cfg.OracleAPIKey = os.Getenv(EnvOracleAPIKey)
	}
	return nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	return &Config{
		OracleBaseURL:        firstString(overlay.OracleBaseURL, base.OracleBaseURL),
		OracleAPIKey:         firstString(overlay.OracleAPIKey, base.OracleAPIKey),
		OracleTimeoutSeconds: firstInt(overlay.OracleTimeoutSeconds, base.OracleTimeoutSeconds),
		DefaultHold:          firstString(overlay.DefaultHold, base.DefaultHold),
		DefaultTransition:    firstString(overlay.DefaultTransition, base.DefaultTransition),
		LogLevel:             firstString(overlay.LogLevel, base.LogLevel),
		LogFile:              firstString(overlay.LogFile, base.LogFile),
		DBMaxOpenConns:       firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:       firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
		WebBind:              firstString(overlay.WebBind, base.WebBind),
		WebPort:              firstInt(overlay.WebPort, base.WebPort),
		DisabledTools:        mergeStringSlice(base.DisabledTools, overlay.DisabledTools),
		DisabledTypes:        mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes),
	}
}

func firstString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
