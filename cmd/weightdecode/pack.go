package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/weightdecode/internal/blobfile"
	"github.com/samcharles93/weightdecode/internal/logger"
	"github.com/samcharles93/weightdecode/pkg/layout"
	"github.com/samcharles93/weightdecode/pkg/wdb"
	"github.com/samcharles93/weightdecode/pkg/weights"
)

func packCmd() *cli.Command {
	var (
		valuesPath  string
		outPath     string
		compression string
		plain       bool
	)

	return &cli.Command{
		Name:  "pack",
		Usage: "Encode a little-endian float32 buffer image into a weight stream",
		Flags: []cli.Flag{
			layoutFlag(),
			&cli.StringFlag{
				Name:        "values",
				Aliases:     []string{"in"},
				Usage:       "raw float32 buffer of total_size values",
				Required:    true,
				Destination: &valuesPath,
			},
			&cli.StringFlag{
				Name:        "encoding",
				Aliases:     []string{"e"},
				Usage:       "block encoding (raw-f32, raw-f16, raw-bf16, q8, q4, lookup, sparse)",
				Value:       "raw-f32",
				Destination: &encodingName,
			},
			&cli.StringFlag{
				Name:        "compression",
				Usage:       "container block compression (none, zlib, zstd)",
				Value:       "none",
				Destination: &compression,
			},
			&cli.BoolFlag{
				Name:        "plain",
				Usage:       "write a headerless stream instead of a WDB container",
				Destination: &plain,
			},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output path (default: ./out/<values>.wdb)",
				Destination: &outPath,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyPackConfig(cmd, fileConfig, &compression)

			enc, err := wdb.ParseEncoding(encodingName)
			if err != nil {
				return err
			}
			comp, err := wdb.ParseCompression(compression)
			if err != nil {
				return err
			}
			if plain && comp != wdb.CompressionNone {
				return fmt.Errorf("--compression %s needs a container; drop --plain", comp)
			}

			ml, err := layout.Load(layoutPath)
			if err != nil {
				return err
			}
			values, err := readValues(valuesPath)
			if err != nil {
				return err
			}

			out, defaulted, err := resolvePackOut(valuesPath, outPath, plain)
			if err != nil {
				return err
			}
			if defaulted {
				log.Info("pack output not set, using default", "path", out)
			}

			if plain {
				data, err := weights.EncodePlain(ml, values, enc)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return err
				}
			} else if err := writeContainer(out, ml, values, weights.Uniform(enc, comp)); err != nil {
				return err
			}
			log.Info("packed weights",
				"path", out,
				"encoding", enc.String(),
				"compression", comp.String(),
				"allocations", ml.Len(),
				"plain", plain,
			)
			return nil
		},
	}
}

func readValues(path string) ([]float32, error) {
	blob, err := blobfile.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = blob.Close() }()

	raw := blob.Bytes()
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("%s: %d bytes is not a whole number of float32 values", path, len(raw))
	}
	values := make([]float32, len(raw)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return values, nil
}

func writeContainer(path string, ml *layout.MemoryLayout, values []float32, pick weights.BlockEncoding) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(f)
	if err := weights.EncodeContainer(bw, ml, values, pick); err != nil {
		return err
	}
	return bw.Flush()
}
