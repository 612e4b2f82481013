package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/weightdecode/internal/blobfile"
	"github.com/samcharles93/weightdecode/pkg/wdb"
)

type blockListing struct {
	Name        string `json:"name"`
	Encoding    string `json:"encoding"`
	Compression string `json:"compression"`
	Count       uint64 `json:"count"`
	Payload     uint64 `json:"payload_bytes"`
	Offset      uint64 `json:"offset"`
}

func inspectCmd() *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:  "inspect",
		Usage: "List the blocks of a WDB container",
		Flags: []cli.Flag{
			weightsFlag(),
			&cli.BoolFlag{Name: "json", Usage: "print the listing as JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			blob, err := blobfile.Open(weightsPath)
			if err != nil {
				return err
			}
			defer func() { _ = blob.Close() }()

			c, err := wdb.Parse(blob.Bytes())
			if err != nil {
				return fmt.Errorf("%s: %w", weightsPath, err)
			}
			if asJSON {
				return printBlocksJSON(os.Stdout, c)
			}
			return printBlocks(os.Stdout, c)
		},
	}
}

func listing(c *wdb.Container) []blockListing {
	out := make([]blockListing, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		out = append(out, blockListing{
			Name:        b.Name,
			Encoding:    b.Encoding.String(),
			Compression: b.Compression.String(),
			Count:       b.Count,
			Payload:     b.PayloadSize,
			Offset:      b.Offset,
		})
	}
	return out
}

func printBlocks(w io.Writer, c *wdb.Container) error {
	_, _ = fmt.Fprintf(w, "WDB %d.%d, %d blocks\n", c.Header.Major, c.Header.Minor, len(c.Blocks))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "NAME\tENCODING\tCOMPRESSION\tCOUNT\tBYTES\tOFFSET\n")
	for _, b := range listing(c) {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n", b.Name, b.Encoding, b.Compression, b.Count, b.Payload, b.Offset)
	}
	return tw.Flush()
}

func printBlocksJSON(w io.Writer, c *wdb.Container) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"major":  c.Header.Major,
		"minor":  c.Header.Minor,
		"blocks": listing(c),
	})
}
