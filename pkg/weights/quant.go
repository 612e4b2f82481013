package weights

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/samcharles93/weightdecode/pkg/wdb"
)

// QuantHeaderSize is the size of the header leading every q8 and q4 block.
const QuantHeaderSize = 8

// QuantHeader precedes the codes of an affine-quantised block:
//
//	scale f32 | zero_point u8 | reserved [3]byte
//
// A code c decodes to (c - ZeroPoint) * Scale.
type QuantHeader struct {
	Scale     float32
	ZeroPoint uint8
}

func readQuantHeader(src []byte, maxZero uint8, what string) (QuantHeader, error) {
	if err := need(src, QuantHeaderSize, what+" header"); err != nil {
		return QuantHeader{}, err
	}
	h := QuantHeader{
		Scale:     math.Float32frombits(binary.LittleEndian.Uint32(src[0:4])),
		ZeroPoint: src[4],
	}
	if src[5] != 0 || src[6] != 0 || src[7] != 0 {
		return QuantHeader{}, fmt.Errorf("%w: %s reserved bytes set", ErrCorruptHeader, what)
	}
	if math.IsNaN(float64(h.Scale)) || math.IsInf(float64(h.Scale), 0) {
		return QuantHeader{}, fmt.Errorf("%w: %s scale is not finite", ErrCorruptHeader, what)
	}
	if h.ZeroPoint > maxZero {
		return QuantHeader{}, fmt.Errorf("%w: %s zero point %d out of range", ErrCorruptHeader, what, h.ZeroPoint)
	}
	return h, nil
}

func putQuantHeader(dst []byte, h QuantHeader) {
	binary.LittleEndian.PutUint32(dst[0:4], math.Float32bits(h.Scale))
	dst[4] = h.ZeroPoint
	dst[5], dst[6], dst[7] = 0, 0, 0
}

// q8 stores one uint8 code per value.
type q8 struct{}

func (q8) Encoding() wdb.Encoding { return wdb.EncodingQ8 }

func (q8) Frame(src []byte, n int) (int, error) {
	size, err := blockBytes("q8", QuantHeaderSize, n)
	if err != nil {
		return 0, err
	}
	if err := need(src, size, "q8"); err != nil {
		return 0, err
	}
	return size, nil
}

func (q8) MaxFrame(n int) (int, bool) { return boundedSum(QuantHeaderSize, n) }

func (q8) Decode(dst []float32, src []byte) error {
	h, err := readQuantHeader(src, math.MaxUint8, "q8")
	if err != nil {
		return err
	}
	codes := src[QuantHeaderSize:]
	if len(codes) != len(dst) {
		return fmt.Errorf("%w: q8 block has %d codes for %d values", ErrSizeMismatch, len(codes), len(dst))
	}
	zp := int32(h.ZeroPoint)
	for i, c := range codes {
		dst[i] = float32(int32(c)-zp) * h.Scale
	}
	return nil
}

// q4 packs two 4-bit codes per byte, low nibble first. An odd count leaves
// the high nibble of the final byte unused; it must be zero.
type q4 struct{}

func (q4) Encoding() wdb.Encoding { return wdb.EncodingQ4 }

func (q4) Frame(src []byte, n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("%w: q4 negative count", ErrSizeMismatch)
	}
	size, err := blockBytes("q4", QuantHeaderSize, n/2, n%2)
	if err != nil {
		return 0, err
	}
	if err := need(src, size, "q4"); err != nil {
		return 0, err
	}
	return size, nil
}

func (q4) MaxFrame(n int) (int, bool) {
	if n < 0 {
		return 0, false
	}
	return boundedSum(QuantHeaderSize, n/2, n%2)
}

func (q4) Decode(dst []float32, src []byte) error {
	h, err := readQuantHeader(src, 0x0f, "q4")
	if err != nil {
		return err
	}
	packed := src[QuantHeaderSize:]
	if len(packed) != (len(dst)+1)/2 {
		return fmt.Errorf("%w: q4 block has %d bytes for %d values", ErrSizeMismatch, len(packed), len(dst))
	}
	zp := int32(h.ZeroPoint)
	n := len(dst)
	for i := 0; i+1 < n; i += 2 {
		b := packed[i/2]
		dst[i] = float32(int32(b&0x0f)-zp) * h.Scale
		dst[i+1] = float32(int32(b>>4)-zp) * h.Scale
	}
	if n%2 == 1 {
		b := packed[n/2]
		if b>>4 != 0 {
			return fmt.Errorf("%w: q4 padding nibble set", ErrCorruptPayload)
		}
		dst[n-1] = float32(int32(b&0x0f)-zp) * h.Scale
	}
	return nil
}
