package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/facthistory/internal/loader"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Backend   Backend   `yaml:"backend"`
	Dashboard Dashboard `yaml:"dashboard"`
	Output    Output    `yaml:"output"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

// Backend describes the analysis service that owns the history.
type Backend struct {
	BaseURL        string   `yaml:"base_url"`
	Endpoints      []string `yaml:"endpoints"`
	FeedURL        string   `yaml:"feed_url"`
	DetailsPath    string   `yaml:"details_path"`
	LoginURL       string   `yaml:"login_url"`
	SessionCookie  string   `yaml:"session_cookie"`
	SessionEnv     string   `yaml:"session_env"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

type Dashboard struct {
	PageSize         int    `yaml:"page_size"`
	SnapshotKeep     int    `yaml:"snapshot_keep"`
	DetailsCacheSize int    `yaml:"details_cache_size"`
	RefreshSchedule  string `yaml:"refresh_schedule"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for facthistory.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "facthistory")
}

// DataDir returns the XDG data directory for facthistory.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "facthistory")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/facthistory/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'facthistory init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Backend: Backend{
			BaseURL:        "http://localhost:5000",
			DetailsPath:    "/get_article_details/",
			LoginURL:       "/login",
			SessionCookie:  "session",
			SessionEnv:     "FACTHISTORY_SESSION",
			TimeoutSeconds: 15,
		},
		Dashboard: Dashboard{
			PageSize:         5,
			SnapshotKeep:     50,
			DetailsCacheSize: 128,
			RefreshSchedule:  "@every 30m",
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if len(cfg.Backend.Endpoints) == 0 {
		cfg.Backend.Endpoints = append([]string(nil), loader.DefaultEndpoints...)
	}

	return cfg, nil
}

// LoadEnv reads .env from the working directory and then from the config
// directory. Variables already set in the environment win.
func LoadEnv() error {
	for _, path := range []string{".env", filepath.Join(ConfigDir(), ".env")} {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// SessionValue returns the backend session cookie value from the environment.
func (b Backend) SessionValue() string {
	if b.SessionEnv == "" {
		return ""
	}
	return os.Getenv(b.SessionEnv)
}

// Timeout returns the per-request backend timeout.
func (b Backend) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
