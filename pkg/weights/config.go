package weights

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/samcharles93/weightdecode/internal/logger"
	"github.com/samcharles93/weightdecode/pkg/wdb"
)

// Format selects how the decoder frames a weight stream.
type Format uint8

const (
	// FormatPlain is a headerless stream: one block per allocation, in
	// layout.Ordered() order, all using Config.Encoding.
	FormatPlain Format = iota
	// FormatContainer is a WDB container of self-describing blocks.
	FormatContainer
	// FormatAuto picks FormatContainer when the data starts with the WDB
	// magic and FormatPlain otherwise.
	FormatAuto
)

func (f Format) String() string {
	switch f {
	case FormatPlain:
		return "plain"
	case FormatContainer:
		return "container"
	case FormatAuto:
		return "auto"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "plain":
		return FormatPlain, nil
	case "container", "wdb":
		return FormatContainer, nil
	case "auto":
		return FormatAuto, nil
	default:
		return FormatPlain, fmt.Errorf("unknown format %q (plain, container, auto)", s)
	}
}

const (
	// DefaultMaxElements caps layout.TotalSize (4 GiB of float32).
	DefaultMaxElements = 1 << 30
	// DefaultMaxBlockBytes caps a decompressed container block.
	DefaultMaxBlockBytes uint64 = 1 << 34
)

// Config controls a Decoder. The zero value decodes plain raw-f32 streams.
type Config struct {
	Format   Format
	Encoding wdb.Encoding // side-channel encoding for plain streams; zero means raw-f32

	// Workers bounds the blocks decoded in parallel within one call.
	// Zero means GOMAXPROCS.
	Workers int

	MaxElements   int
	MaxBlockBytes uint64

	// Logger overrides the logger taken from the decode context.
	Logger logger.Logger

	Variants []Variant
}

// Option mutates a Config.
type Option func(*Config)

func WithFormat(f Format) Option { return func(c *Config) { c.Format = f } }

func WithEncoding(e wdb.Encoding) Option { return func(c *Config) { c.Encoding = e } }

func WithWorkers(n int) Option { return func(c *Config) { c.Workers = n } }

func WithLogger(l logger.Logger) Option { return func(c *Config) { c.Logger = l } }

func WithMaxElements(n int) Option { return func(c *Config) { c.MaxElements = n } }

func WithMaxBlockBytes(n uint64) Option { return func(c *Config) { c.MaxBlockBytes = n } }

// WithVariant registers an additional encoding, or replaces a built-in one
// with the same tag.
func WithVariant(v Variant) Option {
	return func(c *Config) { c.Variants = append(c.Variants, v) }
}

func (c Config) withDefaults() Config {
	if c.Encoding == wdb.EncodingUnknown {
		c.Encoding = wdb.EncodingRawF32
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.MaxElements <= 0 {
		c.MaxElements = DefaultMaxElements
	}
	if c.MaxBlockBytes == 0 {
		c.MaxBlockBytes = DefaultMaxBlockBytes
	}
	return c
}
