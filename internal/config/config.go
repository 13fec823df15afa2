package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds omxkerneld runtime configuration.
type Config struct {
	// DataDir is the base directory for kernel daemon runtime data.
	DataDir string

	// SocketPath is the unix socket path for the omxkerneld HTTP API.
	SocketPath string

	// DBPath is the path to the SQLite command/port/mark audit registry.
	DBPath string

	// EventLogDir is the directory for per-component event-log segments.
	EventLogDir string

	// EventLogSegmentBytes is the size threshold at which an event-log
	// segment is rotated and gzip-compressed.
	EventLogSegmentBytes int64

	// DefaultBufferCount is the buffer_count a freshly registered data
	// port is populated with when no explicit count is requested.
	DefaultBufferCount int

	// ComponentName is the name given to a component instance created
	// without one; the kernel uses a component's name to recognise
	// self-targeted marks (§4.5).
	ComponentName string

	// RMQuiesceTimeout bounds how long the daemon waits for the API
	// server to shut down gracefully on SIGTERM/SIGINT.
	RMQuiesceTimeout time.Duration
}

// DefaultConfig returns the default configuration, rooted under
// ~/.omxkernel.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	baseDir := filepath.Join(homeDir, ".omxkernel")

	return &Config{
		DataDir:              filepath.Join(baseDir, "data"),
		SocketPath:           filepath.Join(baseDir, "omxkerneld.sock"),
		DBPath:               filepath.Join(baseDir, "data", "registry.db"),
		EventLogDir:          filepath.Join(baseDir, "data", "events"),
		EventLogSegmentBytes: 8 << 20,
		DefaultBufferCount:   4,
		ComponentName:        "OMX.student.kernel",
		RMQuiesceTimeout:     5 * time.Second,
	}
}

// EnsureDirs creates every directory the configuration references.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.DataDir,
		filepath.Dir(c.SocketPath),
		filepath.Dir(c.DBPath),
		c.EventLogDir,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
