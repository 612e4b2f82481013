package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/weightdecode/internal/version"
	"github.com/samcharles93/weightdecode/pkg/wdb"
	"github.com/samcharles93/weightdecode/pkg/weights"
)

type buildReport struct {
	Version      string   `json:"version"`
	Commit       string   `json:"commit,omitempty"`
	BuildTime    string   `json:"build_time,omitempty"`
	GoVersion    string   `json:"go_version"`
	Container    string   `json:"container"`
	Encodings    []string `json:"encodings"`
	Compressions []string `json:"compressions"`
}

func newBuildReport(info version.Info) buildReport {
	r := buildReport{
		Version:   info.Version,
		Commit:    info.Commit,
		BuildTime: info.BuildTime,
		GoVersion: info.GoVersion,
		Container: fmt.Sprintf("WDB %d.%d", wdb.CurrentMajor, wdb.CurrentMinor),
	}
	for _, v := range weights.DefaultVariants() {
		r.Encodings = append(r.Encodings, fmt.Sprintf("%s (0x%02x)", v.Encoding(), uint8(v.Encoding())))
	}
	for _, c := range []wdb.Compression{wdb.CompressionNone, wdb.CompressionZlib, wdb.CompressionZstd} {
		r.Compressions = append(r.Compressions, c.String())
	}
	return r
}

func printBuildReport(w io.Writer, r buildReport) error {
	lines := []string{fmt.Sprintf("version:      %s", r.Version)}
	if r.Commit != "" {
		lines = append(lines, fmt.Sprintf("commit:       %s", r.Commit))
	}
	if r.BuildTime != "" {
		lines = append(lines, fmt.Sprintf("build time:   %s", r.BuildTime))
	}
	lines = append(lines,
		fmt.Sprintf("go:           %s", r.GoVersion),
		fmt.Sprintf("container:    %s", r.Container),
		fmt.Sprintf("encodings:    %s", strings.Join(r.Encodings, ", ")),
		fmt.Sprintf("compressions: %s", strings.Join(r.Compressions, ", ")),
	)
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

func versionCmd() *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:  "version",
		Usage: "Print build information and the supported stream encodings",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print as JSON",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			r := newBuildReport(version.Resolve())
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}
			return printBuildReport(os.Stdout, r)
		},
	}
}
