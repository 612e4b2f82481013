package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/weightdecode/internal/logger"
	"github.com/samcharles93/weightdecode/pkg/wdb"
	"github.com/samcharles93/weightdecode/pkg/weights"
)

// Config represents the weightdecode configuration file
// (~/.config/weightdecode/config.yaml). Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Decoding
	Format      string `yaml:"format"`
	Encoding    string `yaml:"encoding"`
	Workers     *int64 `yaml:"workers"`
	MaxElements *int64 `yaml:"max_elements"`

	// Packing
	Compression string `yaml:"compression"`

	// Server
	ServerAddress string `yaml:"server_address"`
	MaxBodyBytes  *int64 `yaml:"max_body_bytes"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "weightdecode", "config.yaml")
}

// LoadConfig reads the config file at path, or the default location when
// path is empty. A missing default file yields a zero Config; a missing
// explicit file is an error.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = configPath()
		if path == "" {
			return Config{}, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyDecoderConfig applies config file defaults to the decoder flags that
// were not set on the command line.
func applyDecoderConfig(c *cli.Command, cfg Config) {
	if cfg.Format != "" && !c.IsSet("format") {
		formatName = cfg.Format
	}
	if cfg.Encoding != "" && !c.IsSet("encoding") {
		encodingName = cfg.Encoding
	}
	if cfg.Workers != nil && !c.IsSet("workers") {
		workers = *cfg.Workers
	}
	if cfg.MaxElements != nil && !c.IsSet("max-elements") {
		maxElements = *cfg.MaxElements
	}
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string, maxBody *int64) {
	applyDecoderConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.MaxBodyBytes != nil && !c.IsSet("max-body") {
		*maxBody = *cfg.MaxBodyBytes
	}
}

func applyPackConfig(c *cli.Command, cfg Config, compression *string) {
	if cfg.Encoding != "" && !c.IsSet("encoding") {
		encodingName = cfg.Encoding
	}
	if cfg.Compression != "" && !c.IsSet("compression") {
		*compression = cfg.Compression
	}
}

// decoderConfig builds the library configuration from the decoder flags.
func decoderConfig(log logger.Logger) (weights.Config, error) {
	format, err := weights.ParseFormat(formatName)
	if err != nil {
		return weights.Config{}, err
	}
	enc, err := wdb.ParseEncoding(encodingName)
	if err != nil {
		return weights.Config{}, err
	}
	if workers < 0 || maxElements < 0 {
		return weights.Config{}, errors.New("--workers and --max-elements must not be negative")
	}
	return weights.Config{
		Format:      format,
		Encoding:    enc,
		Workers:     int(workers),
		MaxElements: int(maxElements),
		Logger:      log,
	}, nil
}
