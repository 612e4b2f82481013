package weights

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/samcharles93/weightdecode/pkg/wdb"
	"github.com/x448/float16"
)

// rawF32 is a run of little-endian IEEE-754 binary32 values.
type rawF32 struct{}

func (rawF32) Encoding() wdb.Encoding { return wdb.EncodingRawF32 }

func (rawF32) Frame(src []byte, n int) (int, error) {
	return rawFrame(src, n, 4, "raw-f32")
}

func (rawF32) MaxFrame(n int) (int, bool) { return mulInt(n, 4) }

func (rawF32) Decode(dst []float32, src []byte) error {
	if len(src) != len(dst)*4 {
		return fmt.Errorf("%w: raw-f32 block is %d bytes for %d values", ErrSizeMismatch, len(src), len(dst))
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return nil
}

// rawF16 is a run of little-endian IEEE-754 binary16 values.
type rawF16 struct{}

func (rawF16) Encoding() wdb.Encoding { return wdb.EncodingRawF16 }

func (rawF16) Frame(src []byte, n int) (int, error) {
	return rawFrame(src, n, 2, "raw-f16")
}

func (rawF16) MaxFrame(n int) (int, bool) { return mulInt(n, 2) }

func (rawF16) Decode(dst []float32, src []byte) error {
	if len(src) != len(dst)*2 {
		return fmt.Errorf("%w: raw-f16 block is %d bytes for %d values", ErrSizeMismatch, len(src), len(dst))
	}
	for i := range dst {
		dst[i] = float16.Frombits(binary.LittleEndian.Uint16(src[i*2:])).Float32()
	}
	return nil
}

// rawBF16 is a run of little-endian bfloat16 values (the top half of a binary32).
type rawBF16 struct{}

func (rawBF16) Encoding() wdb.Encoding { return wdb.EncodingRawBF16 }

func (rawBF16) Frame(src []byte, n int) (int, error) {
	return rawFrame(src, n, 2, "raw-bf16")
}

func (rawBF16) MaxFrame(n int) (int, bool) { return mulInt(n, 2) }

func (rawBF16) Decode(dst []float32, src []byte) error {
	if len(src) != len(dst)*2 {
		return fmt.Errorf("%w: raw-bf16 block is %d bytes for %d values", ErrSizeMismatch, len(src), len(dst))
	}
	for i := range dst {
		dst[i] = bf16ToF32(binary.LittleEndian.Uint16(src[i*2:]))
	}
	return nil
}

func rawFrame(src []byte, n, width int, what string) (int, error) {
	size, ok := mulInt(n, width)
	if !ok {
		return 0, fmt.Errorf("%w: %s block for %d values overflows", ErrSizeMismatch, what, n)
	}
	if err := need(src, size, what); err != nil {
		return 0, err
	}
	return size, nil
}

func bf16ToF32(u uint16) float32 {
	return math.Float32frombits(uint32(u) << 16)
}

// f32ToBF16 rounds to nearest even; NaN stays a quiet NaN.
func f32ToBF16(f float32) uint16 {
	bits := math.Float32bits(f)
	if math.IsNaN(float64(f)) {
		return uint16(bits>>16) | 0x0040
	}
	rounding := uint32(0x7fff) + ((bits >> 16) & 1)
	return uint16((bits + rounding) >> 16)
}
