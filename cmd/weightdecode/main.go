package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/weightdecode/internal/logger"
)

func main() {
	app := &cli.Command{
		Name:   "weightdecode",
		Usage:  "Decode encoded weight streams into a flat float32 buffer",
		Flags:  globalFlags(),
		Before: setup,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			decodeCmd(),
			inspectCmd(),
			packCmd(),
			serveCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config file and installs the logger on the context.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return ctx, err
	}
	fileConfig = cfg
	applyLoggingConfig(cmd, cfg)

	log, err := newLogger()
	if err != nil {
		return ctx, err
	}
	return logger.WithContext(ctx, log), nil
}

func newLogger() (logger.Logger, error) {
	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	if debug {
		level = slog.LevelDebug
	}
	format, err := logger.ParseFormat(logFormat)
	if err != nil {
		return nil, err
	}
	return logger.Build(os.Stderr, format, level), nil
}
