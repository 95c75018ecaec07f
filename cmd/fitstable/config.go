package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the fitstable configuration file
// (~/.config/fitstable/config.yaml). Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	// Storage is ssd, hdd or seq.
	Storage     string   `yaml:"storage"`
	Parallel    *int64   `yaml:"parallel"`
	ChunkSizeMB *float64 `yaml:"chunk_size_mb"`

	// Output
	Format    string `yaml:"format"`
	Delimiter string `yaml:"delimiter"`
	Precision *int64 `yaml:"precision"`
	NoHeader  *bool  `yaml:"no_header"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
	Root          string `yaml:"root"`
}

func configPath() string {
	if p := os.Getenv("FITSTABLE_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "fitstable", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

func applyLogConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyScanConfig applies config file defaults to the scan and output
// flags when the corresponding CLI flag was not explicitly set.
func applyScanConfig(c *cli.Command, cfg Config) {
	storage = cfg.Storage
	if cfg.Parallel != nil && !c.IsSet("parallel") {
		parallel = *cfg.Parallel
	}
	if cfg.ChunkSizeMB != nil && !c.IsSet("chunk-size-mb") {
		chunkSizeMB = *cfg.ChunkSizeMB
	}
	if cfg.Format != "" && !c.IsSet("format") {
		format = cfg.Format
	}
	if cfg.Delimiter != "" && !c.IsSet("delimiter") {
		delimiter = cfg.Delimiter
	}
	if cfg.Precision != nil && !c.IsSet("precision") {
		precision = *cfg.Precision
	}
	if cfg.NoHeader != nil && !c.IsSet("no-header") {
		noHeader = *cfg.NoHeader
	}
}

func applyServeConfig(c *cli.Command, cfg Config, addr, root *string) {
	applyScanConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.Root != "" && !c.IsSet("root") {
		*root = cfg.Root
	}
}
