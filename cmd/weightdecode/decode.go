package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/weightdecode/internal/blobfile"
	"github.com/samcharles93/weightdecode/internal/logger"
	"github.com/samcharles93/weightdecode/pkg/layout"
	"github.com/samcharles93/weightdecode/pkg/weights"
)

func decodeCmd() *cli.Command {
	var outPath string

	return &cli.Command{
		Name:  "decode",
		Usage: "Decode a weight stream into a little-endian float32 buffer",
		Flags: append([]cli.Flag{
			layoutFlag(),
			weightsFlag(),
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "write the decoded buffer here (default: print a per-allocation summary)",
				Destination: &outPath,
			},
		}, decoderFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyDecoderConfig(cmd, fileConfig)

			cfg, err := decoderConfig(log)
			if err != nil {
				return err
			}
			ml, err := layout.Load(layoutPath)
			if err != nil {
				return err
			}
			fut, buf, err := decodeFile(ctx, weights.NewWithConfig(cfg), weightsPath, ml)
			if err != nil {
				return fmt.Errorf("decode %s: %w", weightsPath, err)
			}

			if outPath == "" {
				return printSummary(os.Stdout, ml, buf)
			}
			if err := os.WriteFile(outPath, weights.EncodeRawF32(buf), 0o644); err != nil {
				return err
			}
			log.Info("wrote decoded buffer", "path", outPath, "values", len(buf), "decode_id", fut.ID())
			return nil
		},
	}
}

// decodeFile decodes the weight stream at path. The file stays mapped until
// the decode has settled, even when ctx ends first.
func decodeFile(ctx context.Context, dec *weights.Decoder, path string, ml *layout.MemoryLayout) (*weights.Future, []float32, error) {
	log := logger.FromContext(ctx)
	blob, err := blobfile.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = blob.Close() }()
	log.Debug("loaded weight stream", "path", path, "bytes", blob.Len(), "mmap", blob.Mapped())

	fut := dec.Decode(ctx, blob.Bytes(), ml)
	buf, err := fut.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		log.Info("waiting for in-flight decode to finish", "decode_id", fut.ID())
		<-fut.Done()
	}
	return fut, buf, err
}

func printSummary(w io.Writer, ml *layout.MemoryLayout, buf []float32) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "NAME\tOFFSET\tSIZE\tMIN\tMAX\tMEAN\n")
	for _, e := range ml.Ordered() {
		lo, hi, mean := stats(buf[e.Offset:e.End()])
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%g\t%g\t%g\n", e.Name, e.Offset, e.Size, lo, hi, mean)
	}
	_, _ = fmt.Fprintf(tw, "total\t\t%d\t\t\t\n", len(buf))
	return tw.Flush()
}

func stats(vals []float32) (lo, hi float32, mean float64) {
	if len(vals) == 0 {
		return 0, 0, 0
	}
	lo, hi = float32(math.Inf(1)), float32(math.Inf(-1))
	var sum float64
	for _, v := range vals {
		lo = min(lo, v)
		hi = max(hi, v)
		sum += float64(v)
	}
	return lo, hi, sum / float64(len(vals))
}
