package config

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-exex/pkg/core/storage/dbconfig"
	"go.uber.org/zap/zapcore"
)

// ApplicationConfiguration config specific to the tool.
type ApplicationConfiguration struct {
	LogLevel        string                   `yaml:"LogLevel"`
	LogPath         string                   `yaml:"LogPath"`
	DBConfiguration dbconfig.DBConfiguration `yaml:"DBConfiguration"`
	WAL             WAL                      `yaml:"WAL"`
	Prometheus      BasicService             `yaml:"Prometheus"`
	Stream          Stream                   `yaml:"Stream"`
}

// WAL contains notification write-ahead log settings.
type WAL struct {
	// Compress enables lz4 compression of stored notifications.
	Compress bool `yaml:"Compress"`
	// CacheSize is the number of decoded notifications kept in memory.
	CacheSize int `yaml:"CacheSize"`
}

// Stream contains settings of the WebSocket notification stream.
type Stream struct {
	BasicService `yaml:",inline"`
	// MaxClients is the maximum number of simultaneously connected clients.
	MaxClients int `yaml:"MaxClients"`
}

// Validate checks ApplicationConfiguration for internal consistency and returns
// an error if any invalid settings are found.
func (a *ApplicationConfiguration) Validate() error {
	if a.LogLevel != "" {
		if _, err := zapcore.ParseLevel(a.LogLevel); err != nil {
			return fmt.Errorf("invalid LogLevel: %w", err)
		}
	}
	switch a.DBConfiguration.Type {
	case dbconfig.InMemoryDB:
	case dbconfig.LevelDB:
		if a.DBConfiguration.LevelDBOptions.DataDirectoryPath == "" {
			return errors.New("LevelDBOptions.DataDirectoryPath is not set")
		}
	case dbconfig.BoltDB:
		if a.DBConfiguration.BoltDBOptions.FilePath == "" {
			return errors.New("BoltDBOptions.FilePath is not set")
		}
	default:
		return fmt.Errorf("unknown DB type: %q", a.DBConfiguration.Type)
	}
	if a.WAL.CacheSize <= 0 {
		return fmt.Errorf("WAL.CacheSize should be positive, got %d", a.WAL.CacheSize)
	}
	if a.Prometheus.Enabled && len(a.Prometheus.Addresses) == 0 {
		return errors.New("Prometheus is enabled, but no Addresses are set")
	}
	if a.Stream.Enabled && len(a.Stream.Addresses) == 0 {
		return errors.New("Stream is enabled, but no Addresses are set")
	}
	if a.Stream.MaxClients < 0 {
		return fmt.Errorf("Stream.MaxClients should not be negative, got %d", a.Stream.MaxClients)
	}
	return nil
}
