package weights

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/samcharles93/weightdecode/pkg/layout"
	"github.com/samcharles93/weightdecode/pkg/wdb"
	"github.com/x448/float16"
)

// EncodeRawF32 is lossless.
func EncodeRawF32(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func EncodeRawF16(values []float32) []byte {
	out := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[i*2:], float16.Fromfloat32(v).Bits())
	}
	return out
}

func EncodeRawBF16(values []float32) []byte {
	out := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[i*2:], f32ToBF16(v))
	}
	return out
}

// EncodeQ8Codes builds a q8 block from explicit codes.
func EncodeQ8Codes(h QuantHeader, codes []uint8) []byte {
	out := make([]byte, QuantHeaderSize+len(codes))
	putQuantHeader(out, h)
	copy(out[QuantHeaderSize:], codes)
	return out
}

// EncodeQ4Codes builds a q4 block from explicit codes; each must be < 16.
func EncodeQ4Codes(h QuantHeader, codes []uint8) ([]byte, error) {
	out := make([]byte, QuantHeaderSize+(len(codes)+1)/2)
	putQuantHeader(out, h)
	for i, c := range codes {
		if c > 0x0f {
			return nil, fmt.Errorf("q4 code %d at %d does not fit in 4 bits", c, i)
		}
		if i%2 == 0 {
			out[QuantHeaderSize+i/2] = c
		} else {
			out[QuantHeaderSize+i/2] |= c << 4
		}
	}
	return out, nil
}

// EncodeQ8 quantises values with an affine min/max mapping onto 0..255.
func EncodeQ8(values []float32) ([]byte, error) {
	h, codes, err := quantise(values, math.MaxUint8)
	if err != nil {
		return nil, err
	}
	return EncodeQ8Codes(h, codes), nil
}

// EncodeQ4 quantises values with an affine min/max mapping onto 0..15.
func EncodeQ4(values []float32) ([]byte, error) {
	h, codes, err := quantise(values, 0x0f)
	if err != nil {
		return nil, err
	}
	return EncodeQ4Codes(h, codes)
}

func quantise(values []float32, levels uint8) (QuantHeader, []uint8, error) {
	codes := make([]uint8, len(values))
	if len(values) == 0 {
		return QuantHeader{Scale: 1}, codes, nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return QuantHeader{}, nil, errors.New("cannot quantise non-finite values")
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo == hi {
		// A constant tensor is exact with a single code.
		if lo == 0 {
			return QuantHeader{Scale: 1}, codes, nil
		}
		for i := range codes {
			codes[i] = 1
		}
		return QuantHeader{Scale: lo}, codes, nil
	}

	scale := (float64(hi) - float64(lo)) / float64(levels)
	zp := math.Round(-float64(lo) / scale)
	zp = max(0, min(float64(levels), zp))
	for i, v := range values {
		q := math.Round(float64(v)/scale) + zp
		codes[i] = uint8(max(0, min(float64(levels), q)))
	}
	return QuantHeader{Scale: float32(scale), ZeroPoint: uint8(zp)}, codes, nil
}

// EncodeLookupCodes builds a lookup block from an explicit codebook.
func EncodeLookupCodes(table []float32, codes []uint8) ([]byte, error) {
	if len(table) == 0 || len(table) > MaxCodebookEntries {
		return nil, fmt.Errorf("codebook size %d not in 1..%d", len(table), MaxCodebookEntries)
	}
	out := make([]byte, 4+len(table)*4+len(codes))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(table)))
	for i, v := range table {
		binary.LittleEndian.PutUint32(out[4+i*4:], math.Float32bits(v))
	}
	copy(out[4+len(table)*4:], codes)
	return out, nil
}

// EncodeLookup stores values losslessly through a codebook of their distinct
// bit patterns. It fails when there are more than MaxCodebookEntries.
func EncodeLookup(values []float32) ([]byte, error) {
	index := make(map[uint32]uint8)
	var table []float32
	codes := make([]uint8, len(values))
	for i, v := range values {
		bits := math.Float32bits(v)
		c, ok := index[bits]
		if !ok {
			if len(table) == MaxCodebookEntries {
				return nil, fmt.Errorf("more than %d distinct values", MaxCodebookEntries)
			}
			c = uint8(len(table))
			index[bits] = c
			table = append(table, v)
		}
		codes[i] = c
	}
	if len(table) == 0 {
		table = []float32{0}
	}
	return EncodeLookupCodes(table, codes)
}

// EncodeSparse stores every value whose bit pattern is not +0.
func EncodeSparse(values []float32) []byte {
	var idx []uint32
	for i, v := range values {
		if math.Float32bits(v) != 0 {
			idx = append(idx, uint32(i))
		}
	}
	out := make([]byte, 4+len(idx)*8)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(idx)))
	for k, i := range idx {
		binary.LittleEndian.PutUint32(out[4+k*4:], i)
		binary.LittleEndian.PutUint32(out[4+len(idx)*4+k*4:], math.Float32bits(values[i]))
	}
	return out
}

// Encode encodes one block of values.
func Encode(enc wdb.Encoding, values []float32) ([]byte, error) {
	switch enc {
	case wdb.EncodingRawF32:
		return EncodeRawF32(values), nil
	case wdb.EncodingRawF16:
		return EncodeRawF16(values), nil
	case wdb.EncodingRawBF16:
		return EncodeRawBF16(values), nil
	case wdb.EncodingQ8:
		return EncodeQ8(values)
	case wdb.EncodingQ4:
		return EncodeQ4(values)
	case wdb.EncodingLookup:
		return EncodeLookup(values)
	case wdb.EncodingSparse:
		return EncodeSparse(values), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, enc)
	}
}

func checkImage(ml *layout.MemoryLayout, buf []float32) error {
	if err := ml.Validate(); err != nil {
		return err
	}
	if len(buf) != ml.TotalSize {
		return fmt.Errorf("%w: buffer has %d values, layout total_size is %d", ErrSizeMismatch, len(buf), ml.TotalSize)
	}
	return nil
}

// EncodePlain encodes a buffer image as a headerless stream of enc blocks in
// layout order. Decoding it with FormatPlain and the same encoding restores
// every allocated region (exactly, for lossless encodings).
func EncodePlain(ml *layout.MemoryLayout, buf []float32, enc wdb.Encoding) ([]byte, error) {
	if err := checkImage(ml, buf); err != nil {
		return nil, err
	}
	var out []byte
	for _, e := range ml.Ordered() {
		b, err := Encode(enc, buf[e.Offset:e.End()])
		if err != nil {
			return nil, fmt.Errorf("allocation %q: %w", e.Name, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

// BlockEncoding picks the encoding and compression of one allocation.
type BlockEncoding func(e layout.Entry) (wdb.Encoding, wdb.Compression)

// Uniform applies one encoding and compression to every allocation.
func Uniform(enc wdb.Encoding, comp wdb.Compression) BlockEncoding {
	return func(layout.Entry) (wdb.Encoding, wdb.Compression) { return enc, comp }
}

// EncodeContainer writes a buffer image as a WDB container to w.
func EncodeContainer(w io.Writer, ml *layout.MemoryLayout, buf []float32, pick BlockEncoding) error {
	if err := checkImage(ml, buf); err != nil {
		return err
	}
	cw, err := wdb.NewWriter(w)
	if err != nil {
		return err
	}
	for _, e := range ml.Ordered() {
		enc, comp := pick(e)
		payload, err := Encode(enc, buf[e.Offset:e.End()])
		if err != nil {
			return fmt.Errorf("allocation %q: %w", e.Name, err)
		}
		if err := cw.WriteBlock(wdb.BlockSpec{
			Name:        e.Name,
			Encoding:    enc,
			Compression: comp,
			Count:       uint64(e.Size),
			Payload:     payload,
		}); err != nil {
			return err
		}
	}
	return cw.Finalise()
}
