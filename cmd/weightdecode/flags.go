package main

import "github.com/urfave/cli/v3"

var (
	configFile string
	logLevel   string
	logFormat  string
	debug      bool

	// fileConfig holds the config file read by setup.
	fileConfig Config
)

var (
	layoutPath   string
	weightsPath  string
	formatName   string
	encodingName string
	workers      int64
	maxElements  int64
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default: user config dir)",
			Destination: &configFile,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func layoutFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "layout",
		Aliases:     []string{"l"},
		Usage:       "memory layout descriptor (.json, .yaml)",
		Required:    true,
		Destination: &layoutPath,
	}
}

func weightsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "weights",
		Aliases:     []string{"w"},
		Usage:       "encoded weight stream",
		Required:    true,
		Destination: &weightsPath,
	}
}

// decoderFlags configure weights.Config for decode and serve.
func decoderFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "format",
			Usage:       "stream framing (plain, container, auto)",
			Value:       "auto",
			Destination: &formatName,
		},
		&cli.StringFlag{
			Name:        "encoding",
			Aliases:     []string{"e"},
			Usage:       "block encoding of plain streams (raw-f32, raw-f16, raw-bf16, q8, q4, lookup, sparse)",
			Value:       "raw-f32",
			Destination: &encodingName,
		},
		&cli.Int64Flag{
			Name:        "workers",
			Aliases:     []string{"j"},
			Usage:       "blocks decoded in parallel per call (0 = GOMAXPROCS)",
			Destination: &workers,
		},
		&cli.Int64Flag{
			Name:        "max-elements",
			Usage:       "reject layouts with a larger total_size (0 = library default)",
			Destination: &maxElements,
		},
	}
}
