package wdb

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// MaxZstdWindow caps the window a zstd frame may declare. The writer's
// frames use at most 8 MiB.
const MaxZstdWindow = 64 << 20

// Decoders are not safe for concurrent use; each goroutine borrows its own.
var zstdDecPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxWindow(MaxZstdWindow),
		)
		if err != nil {
			return nil
		}
		return dec
	},
}

var zstdEncPool = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil
		}
		return enc
	},
}

// Decompress inflates a block payload. limit caps the inflated size; a
// payload that would exceed it is rejected rather than truncated.
func Decompress(c Compression, src []byte, limit uint64) ([]byte, error) {
	switch c {
	case CompressionNone:
		return src, nil
	case CompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("%w: zlib: %v", ErrCorruptPayload, err)
		}
		defer func() { _ = zr.Close() }()
		return readLimited(zr, limit, "zlib")
	case CompressionZstd:
		dec, _ := zstdDecPool.Get().(*zstd.Decoder)
		if dec == nil {
			return nil, fmt.Errorf("zstd: cannot create decoder")
		}
		defer zstdDecPool.Put(dec)
		if err := dec.Reset(bytes.NewReader(src)); err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorruptPayload, err)
		}
		out, err := readLimited(dec, limit, "zstd")
		// Drop the reference to src before the decoder goes back to the pool.
		_ = dec.Reset(bytes.NewReader(nil))
		return out, err
	default:
		return nil, fmt.Errorf("%w: compression %s", ErrUnsupportedEncoding, c)
	}
}

// Compress deflates a block payload for the writer.
func Compress(c Compression, src []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return src, nil
	case CompressionZlib:
		var buf bytes.Buffer
		zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(src); err != nil {
			return nil, fmt.Errorf("zlib encode: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("zlib encode: %w", err)
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, _ := zstdEncPool.Get().(*zstd.Encoder)
		if enc == nil {
			return nil, fmt.Errorf("zstd: cannot create encoder")
		}
		defer zstdEncPool.Put(enc)
		return enc.EncodeAll(src, nil), nil
	default:
		return nil, fmt.Errorf("%w: compression %s", ErrUnsupportedEncoding, c)
	}
}

func readLimited(r io.Reader, limit uint64, codec string) ([]byte, error) {
	var buf bytes.Buffer
	lr := io.LimitReader(r, int64(min(limit, uint64(1<<62)))+1)
	if _, err := buf.ReadFrom(lr); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptPayload, codec, err)
	}
	if uint64(buf.Len()) > limit {
		return nil, fmt.Errorf("%w: %s payload inflates past %d bytes", ErrSizeMismatch, codec, limit)
	}
	return buf.Bytes(), nil
}
