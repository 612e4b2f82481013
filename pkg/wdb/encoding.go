package wdb

import (
	"fmt"
	"strings"
)

// Encoding identifies how a block's values are represented.
// Keep these stable forever; add new values only.
type Encoding uint8

const (
	EncodingUnknown Encoding = 0x00

	EncodingRawF32  Encoding = 0x01
	EncodingRawF16  Encoding = 0x02
	EncodingRawBF16 Encoding = 0x03

	// Affine quantised codes: value = (code - zero_point) * scale.
	EncodingQ8     Encoding = 0x10
	EncodingQ4     Encoding = 0x11
	EncodingLookup Encoding = 0x12

	EncodingSparse Encoding = 0x20
)

var encodingNames = map[Encoding]string{
	EncodingRawF32:  "raw-f32",
	EncodingRawF16:  "raw-f16",
	EncodingRawBF16: "raw-bf16",
	EncodingQ8:      "q8",
	EncodingQ4:      "q4",
	EncodingLookup:  "lookup",
	EncodingSparse:  "sparse",
}

func (e Encoding) String() string {
	if s, ok := encodingNames[e]; ok {
		return s
	}
	return fmt.Sprintf("encoding(0x%02x)", uint8(e))
}

// ParseEncoding accepts the names printed by Encoding.String, plus "raw" as
// shorthand for raw-f32.
func ParseEncoding(s string) (Encoding, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "raw" || s == "f32" {
		return EncodingRawF32, nil
	}
	for e, name := range encodingNames {
		if name == s {
			return e, nil
		}
	}
	return EncodingUnknown, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, s)
}

// Compression identifies how a container block payload is stored.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionZlib Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZlib:
		return "zlib"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "zlib":
		return CompressionZlib, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return CompressionNone, fmt.Errorf("%w: compression %q", ErrUnsupportedEncoding, s)
	}
}
