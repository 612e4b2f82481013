package weights

import (
	"fmt"

	"github.com/samcharles93/weightdecode/pkg/wdb"
)

// Variant decodes one block encoding.
//
// Implementations must be stateless: a single Variant value serves every
// concurrent decode call and every block within a call.
type Variant interface {
	Encoding() wdb.Encoding

	// Frame returns the byte length of the block at the start of src that
	// holds n elements. It reads headers only and fails with ErrTruncatedData
	// when src is shorter than the block.
	Frame(src []byte, n int) (int, error)

	// Decode writes exactly len(dst) values. src is exactly one framed block.
	// Every position of dst must be written, including zeros.
	Decode(dst []float32, src []byte) error
}

// FrameBounder is implemented by variants whose encoded size has an upper
// bound for a given element count. Compressed blocks of such a variant are
// never inflated past that bound. ok is false when the bound overflows int.
type FrameBounder interface {
	MaxFrame(n int) (size int, ok bool)
}

// DefaultVariants returns the built-in encodings.
func DefaultVariants() []Variant {
	return []Variant{
		rawF32{},
		rawF16{},
		rawBF16{},
		q8{},
		q4{},
		lookup{},
		sparse{},
	}
}

type variantTable map[wdb.Encoding]Variant

func newVariantTable(extra []Variant) variantTable {
	t := make(variantTable, len(extra)+8)
	for _, v := range DefaultVariants() {
		t[v.Encoding()] = v
	}
	for _, v := range extra {
		if v != nil {
			t[v.Encoding()] = v
		}
	}
	return t
}

func (t variantTable) lookup(e wdb.Encoding) (Variant, error) {
	v, ok := t[e]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, e)
	}
	return v, nil
}

// need checks that src holds at least n bytes.
func need(src []byte, n int, what string) error {
	if n < 0 || len(src) < n {
		return fmt.Errorf("%w: %s needs %d bytes, have %d", ErrTruncatedData, what, n, len(src))
	}
	return nil
}

// mulInt multiplies non-negative ints, reporting overflow.
func mulInt(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	maxInt := int(^uint(0) >> 1)
	if a > maxInt/b {
		return 0, false
	}
	return a * b, true
}

func addInt(a, b int) (int, bool) {
	maxInt := int(^uint(0) >> 1)
	if a < 0 || b < 0 || a > maxInt-b {
		return 0, false
	}
	return a + b, true
}

// boundedSum adds non-negative parts, reporting overflow.
func boundedSum(parts ...int) (int, bool) {
	total := 0
	for _, p := range parts {
		var ok bool
		if total, ok = addInt(total, p); !ok {
			return 0, false
		}
	}
	return total, true
}

func blockBytes(what string, parts ...int) (int, error) {
	total := 0
	for _, p := range parts {
		var ok bool
		total, ok = addInt(total, p)
		if !ok {
			return 0, fmt.Errorf("%w: %s block too large", ErrCorruptHeader, what)
		}
	}
	return total, nil
}
