// Package config loads travelstore settings from a yaml file.
package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/kjk/travelstore/archive"
	"github.com/kjk/travelstore/store"
)

// DefaultName is the config file looked up when no path is given
const DefaultName = "travelstore.yaml"

type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
	Archive ArchiveConfig `yaml:"archive"`
}

type StoreConfig struct {
	Path      string `yaml:"path"`       // data file
	SyncWrite bool   `yaml:"sync_write"` // fsync after every append
	Index     string `yaml:"index"`      // "sorted" or "btree"
}

type LogConfig struct {
	Dir     string `yaml:"dir"` // empty means log to stdout only
	Verbose bool   `yaml:"verbose"`
}

type ArchiveConfig struct {
	Endpoint string `yaml:"endpoint"`
	Access   string `yaml:"access"`
	Secret   string `yaml:"secret"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	Insecure bool   `yaml:"insecure"`
}

func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:  "travelstore.dat",
			Index: store.IndexSorted.String(),
		},
		Archive: ArchiveConfig{
			Prefix: "travelstore",
		},
	}
}

// Load reads config from configPath. If configPath is empty it tries
// DefaultName in configs/ and current directory, falling back to defaults.
func Load(configPath string) (*Config, error) {
	cfg := defaultConfig()
	if configPath == "" {
		for _, p := range []string{"configs/" + DefaultName, DefaultName} {
			data, err := os.ReadFile(p)
			if err == nil {
				return cfg, parse(cfg, data, p)
			}
		}
		applyDefaults(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}
	return cfg, parse(cfg, data, configPath)
}

func parse(cfg *Config, data []byte, path string) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parsing '%s': %w", path, err)
	}
	applyDefaults(cfg)
	if _, ok := store.ParseIndexKind(cfg.Store.Index); !ok {
		return fmt.Errorf("config: '%s': unknown index '%s'", path, cfg.Store.Index)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Store.Path == "" {
		cfg.Store.Path = "travelstore.dat"
	}
	if cfg.Store.Index == "" {
		cfg.Store.Index = store.IndexSorted.String()
	}
}

// NewStore opens a store described by c
func (c *StoreConfig) NewStore() (*store.Store, error) {
	kind, ok := store.ParseIndexKind(c.Index)
	if !ok {
		return nil, fmt.Errorf("config: unknown index '%s'", c.Index)
	}
	s := &store.Store{
		DataPath:  c.Path,
		SyncWrite: c.SyncWrite,
		Index:     kind,
	}
	if err := store.OpenStore(s); err != nil {
		return nil, err
	}
	return s, nil
}

// HasRemote returns true if remote storage for snapshots is configured
func (c *ArchiveConfig) HasRemote() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// RemoteConfig converts to archive.Config
func (c *ArchiveConfig) RemoteConfig() *archive.Config {
	return &archive.Config{
		Endpoint: c.Endpoint,
		Access:   c.Access,
		Secret:   c.Secret,
		Bucket:   c.Bucket,
		Region:   c.Region,
		Insecure: c.Insecure,
	}
}
