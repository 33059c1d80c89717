// Package config provides configuration management for the VidSlicer agent.
// Configuration is loaded from environment variables with sensible defaults,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort     = 8788
	DefaultLogLevel = "info"
	DefaultDataDir  = ".vidslicer"
	DefaultAPIURL   = "http://127.0.0.1:5000/api"
	DefaultTimeout  = 60 // seconds

	// Environment variable names
	EnvPort        = "VIDSLICER_PORT"
	EnvLogLevel    = "VIDSLICER_LOG_LEVEL"
	EnvDataDir     = "VIDSLICER_DATA_DIR"
	EnvAPIURL      = "VIDSLICER_API_URL"
	EnvDownloadDir = "VIDSLICER_DOWNLOAD_DIR"
	EnvTimeout     = "VIDSLICER_TIMEOUT"
	EnvHistory     = "VIDSLICER_HISTORY"
	EnvOffline     = "VIDSLICER_OFFLINE"
	EnvHeadless    = "VIDSLICER_HEADLESS"

	// Database filename
	DBFilename = "vidslicer.db"

	// History modes
	HistoryRemote = "remote"
	HistoryLocal  = "local"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	APIURL() string
	DownloadDir() string
	RequestTimeout() time.Duration
	HistoryMode() string
	Offline() bool
	Headless() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port        int
	logLevel    string
	dataDir     string
	apiURL      string
	downloadDir string
	timeout     time.Duration
	historyMode string
	offline     bool
	headless    bool
}

// New creates a new EnvConfig with defaults and environment variable overrides.
// A .env file in the working directory is loaded first when present; variables
// already set in the environment win.
func New() (*EnvConfig, error) {
	_ = godotenv.Load()

	cfg := &EnvConfig{
		port:        DefaultPort,
		logLevel:    DefaultLogLevel,
		dataDir:     defaultDataDir(),
		apiURL:      DefaultAPIURL,
		timeout:     DefaultTimeout * time.Second,
		historyMode: HistoryRemote,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if u := os.Getenv(EnvAPIURL); u != "" {
		cfg.apiURL = strings.TrimRight(u, "/")
	}

	cfg.downloadDir = os.Getenv(EnvDownloadDir)

	if t := os.Getenv(EnvTimeout); t != "" {
		secs, err := strconv.Atoi(t)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		if secs <= 0 {
			return nil, fmt.Errorf("invalid %s: timeout must be positive", EnvTimeout)
		}
		cfg.timeout = time.Duration(secs) * time.Second
	}

	if hm := os.Getenv(EnvHistory); hm != "" {
		if err := cfg.SetHistoryMode(hm); err != nil {
			return nil, err
		}
	}

	cfg.offline = parseBool(os.Getenv(EnvOffline))
	cfg.headless = parseBool(os.Getenv(EnvHeadless))

	return cfg, nil
}

// Port returns the control API port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// APIURL returns the backend base URL, without a trailing slash
func (c *EnvConfig) APIURL() string {
	return c.apiURL
}

// DownloadDir returns where finished downloads are written
func (c *EnvConfig) DownloadDir() string {
	if c.downloadDir != "" {
		return c.downloadDir
	}
	return filepath.Join(c.dataDir, "downloads")
}

func (c *EnvConfig) RequestTimeout() time.Duration {
	return c.timeout
}

func (c *EnvConfig) HistoryMode() string {
	return c.historyMode
}

func (c *EnvConfig) Offline() bool {
	return c.offline
}

func (c *EnvConfig) Headless() bool {
	return c.headless
}

// SetAPIURL overrides the backend base URL (CLI flag)
func (c *EnvConfig) SetAPIURL(u string) {
	if u != "" {
		c.apiURL = strings.TrimRight(u, "/")
	}
}

// SetDownloadDir overrides the download directory (CLI flag)
func (c *EnvConfig) SetDownloadDir(dir string) {
	if dir != "" {
		c.downloadDir = dir
	}
}

func (c *EnvConfig) SetHeadless(headless bool) {
	c.headless = headless
}

func (c *EnvConfig) SetOffline(offline bool) {
	c.offline = offline
}

func (c *EnvConfig) SetLogLevel(level string) {
	if level != "" {
		c.logLevel = level
	}
}

func (c *EnvConfig) SetPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
	}
	c.port = port
	return nil
}

// SetHistoryMode switches between the backend history and the local SQLite history
func (c *EnvConfig) SetHistoryMode(mode string) error {
	switch strings.ToLower(mode) {
	case HistoryRemote:
		c.historyMode = HistoryRemote
	case HistoryLocal:
		c.historyMode = HistoryLocal
	default:
		return fmt.Errorf("invalid %s: must be %q or %q", EnvHistory, HistoryRemote, HistoryLocal)
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
