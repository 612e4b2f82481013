package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/weightdecode/internal/logger"
	"github.com/samcharles93/weightdecode/pkg/wdb"
	"github.com/samcharles93/weightdecode/pkg/weights"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "log_level: debug\nformat: container\nencoding: q8\nworkers: 3\nserver_address: 0.0.0.0:9000\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Format != "container" || cfg.Encoding != "q8" || cfg.ServerAddress != "0.0.0.0:9000" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Workers == nil || *cfg.Workers != 3 {
		t.Fatalf("workers not loaded: %v", cfg.Workers)
	}
	if cfg.MaxElements != nil {
		t.Fatalf("unset max_elements should stay nil, got %d", *cfg.MaxElements)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("missing default config should not fail: %v", err)
	}
	if cfg != (Config{}) {
		t.Fatalf("expected zero config, got %+v", cfg)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("workers: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected yaml error")
	}
}

func resetDecoderFlags() {
	formatName, encodingName, workers, maxElements = "", "", 0, 0
}

func TestApplyDecoderConfigRespectsFlags(t *testing.T) {
	resetDecoderFlags()
	t.Cleanup(resetDecoderFlags)

	three, big := int64(3), int64(1<<20)
	cfg := Config{Format: "container", Encoding: "q4", Workers: &three, MaxElements: &big}

	cmd := &cli.Command{
		Name:  "decode",
		Flags: decoderFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyDecoderConfig(c, cfg)
			return nil
		},
	}
	if err := cmd.Run(context.Background(), []string{"decode", "--encoding", "sparse", "--workers", "5"}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if formatName != "container" {
		t.Errorf("format from config not applied: %q", formatName)
	}
	if encodingName != "sparse" {
		t.Errorf("explicit --encoding overridden: %q", encodingName)
	}
	if workers != 5 {
		t.Errorf("explicit --workers overridden: %d", workers)
	}
	if maxElements != big {
		t.Errorf("max_elements from config not applied: %d", maxElements)
	}

	got, err := decoderConfig(logger.Discard())
	if err != nil {
		t.Fatalf("decoderConfig: %v", err)
	}
	if got.Format != weights.FormatContainer || got.Encoding != wdb.EncodingSparse || got.Workers != 5 {
		t.Fatalf("unexpected decoder config: %+v", got)
	}
}

func TestDecoderConfigRejectsBadNames(t *testing.T) {
	resetDecoderFlags()
	t.Cleanup(resetDecoderFlags)

	formatName, encodingName = "auto", "q3"
	if _, err := decoderConfig(logger.Discard()); err == nil {
		t.Fatal("expected unknown encoding error")
	}
	formatName, encodingName = "tarball", "raw"
	if _, err := decoderConfig(logger.Discard()); err == nil {
		t.Fatal("expected unknown format error")
	}
	formatName, encodingName, workers = "plain", "raw", -1
	if _, err := decoderConfig(logger.Discard()); err == nil {
		t.Fatal("expected negative workers error")
	}
}
