package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nspcc-dev/neo-exex/pkg/core/storage/dbconfig"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultWALCacheSize is the default number of decoded notifications
	// kept in memory.
	DefaultWALCacheSize = 128
	// DefaultStreamMaxClients is the default number of simultaneously
	// connected stream clients.
	DefaultStreamMaxClients = 64
	// DefaultConfigPath is the default path to the config file.
	DefaultConfigPath = "./config/neo-exex.yml"
)

// Version is the version of the tool, set at build time.
var Version string

// Config top level struct representing the config.
type Config struct {
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
}

// LoadFile loads config from the provided path. Unknown fields are not
// allowed.
func LoadFile(configPath string) (Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config '%s' doesn't exist", configPath)
	}

	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}
	return Load(configData)
}

// Load decodes config from the given YAML data filling in default values
// for missing fields.
func Load(configData []byte) (Config, error) {
	config := Config{
		ApplicationConfiguration: ApplicationConfiguration{
			DBConfiguration: dbconfig.DBConfiguration{
				Type: dbconfig.InMemoryDB,
			},
			WAL: WAL{
				CacheSize: DefaultWALCacheSize,
			},
			Stream: Stream{
				MaxClients: DefaultStreamMaxClients,
			},
		},
	}

	decoder := yaml.NewDecoder(bytes.NewReader(configData))
	decoder.KnownFields(true)
	err := decoder.Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	err = config.ApplicationConfiguration.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}
