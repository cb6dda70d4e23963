// Package config provides configuration management for the Overdub server.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort           = 8585
	DefaultLogLevel       = "info"
	DefaultDataDir        = ".overdub"
	DefaultBaseVideo      = "assets/base_video.webm"
	DefaultMaxUploadBytes = 50 * 1024 * 1024 // 50MB
	DefaultMergeTimeout   = 10 * time.Minute

	// Environment variable names
	EnvPort           = "OVERDUB_PORT"
	EnvLogLevel       = "OVERDUB_LOG_LEVEL"
	EnvDataDir        = "OVERDUB_DATA_DIR"
	EnvBaseVideo      = "OVERDUB_BASE_VIDEO"
	EnvFFmpeg         = "OVERDUB_FFMPEG"
	EnvMaxUploadBytes = "OVERDUB_MAX_UPLOAD_BYTES"
	EnvMergeTimeoutS  = "OVERDUB_MERGE_TIMEOUT_S"
	EnvTempDir        = "OVERDUB_TEMP_DIR"

	// Database filename
	DBFilename = "overdub.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	BaseVideoPath() string
	FFmpegPath() string
	MaxUploadBytes() int64
	MergeTimeout() time.Duration
	TempDir() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port           int
	logLevel       string
	dataDir        string
	baseVideoPath  string
	ffmpegPath     string
	maxUploadBytes int64
	mergeTimeout   time.Duration
	tempDir        string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:           DefaultPort,
		logLevel:       DefaultLogLevel,
		dataDir:        defaultDataDir(),
		baseVideoPath:  DefaultBaseVideo,
		maxUploadBytes: DefaultMaxUploadBytes,
		mergeTimeout:   DefaultMergeTimeout,
		tempDir:        os.TempDir(),
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

	if bv := os.Getenv(EnvBaseVideo); bv != "" {
		cfg.baseVideoPath = bv
	}

	cfg.ffmpegPath = os.Getenv(EnvFFmpeg)

	if mb := os.Getenv(EnvMaxUploadBytes); mb != "" {
		n, err := strconv.ParseInt(mb, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvMaxUploadBytes, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("invalid %s: must be positive", EnvMaxUploadBytes)
		}
		cfg.maxUploadBytes = n
	}

	if ts := os.Getenv(EnvMergeTimeoutS); ts != "" {
		secs, err := strconv.Atoi(ts)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvMergeTimeoutS, err)
		}
		if secs < 1 {
			return nil, fmt.Errorf("invalid %s: must be positive", EnvMergeTimeoutS)
		}
		cfg.mergeTimeout = time.Duration(secs) * time.Second
	}

	if td := os.Getenv(EnvTempDir); td != "" {
		cfg.tempDir = td
	}

	return cfg, nil
}

// Port returns the HTTP server port
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

// BaseVideoPath returns the path to the fixed base video asset.
// Relative paths resolve against the process working directory.
func (c *EnvConfig) BaseVideoPath() string {
	return c.baseVideoPath
}

// FFmpegPath returns the configured ffmpeg binary path.
// Empty means auto-detect on PATH.
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

// MaxUploadBytes returns the maximum accepted request body size
func (c *EnvConfig) MaxUploadBytes() int64 {
	return c.maxUploadBytes
}

// MergeTimeout returns the bound on a single ffmpeg invocation
func (c *EnvConfig) MergeTimeout() time.Duration {
	return c.mergeTimeout
}

// TempDir returns the directory for uploaded and merged temp files
func (c *EnvConfig) TempDir() string {
	return c.tempDir
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
