package weights

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/samcharles93/weightdecode/pkg/wdb"
)

// MaxCodebookEntries bounds a lookup block's table; codes are one byte.
const MaxCodebookEntries = 256

// lookup maps one-byte codes through a per-block codebook:
//
//	entries u32 | codebook [entries]f32 | codes [n]u8
type lookup struct{}

func (lookup) Encoding() wdb.Encoding { return wdb.EncodingLookup }

func (lookup) Frame(src []byte, n int) (int, error) {
	entries, err := codebookLen(src)
	if err != nil {
		return 0, err
	}
	size, err := blockBytes("lookup", 4, entries*4, n)
	if err != nil {
		return 0, err
	}
	if err := need(src, size, "lookup"); err != nil {
		return 0, err
	}
	return size, nil
}

// MaxFrame assumes a full codebook.
func (lookup) MaxFrame(n int) (int, bool) {
	return boundedSum(4, MaxCodebookEntries*4, n)
}

func (lookup) Decode(dst []float32, src []byte) error {
	entries, err := codebookLen(src)
	if err != nil {
		return err
	}
	tableEnd := 4 + entries*4
	if err := need(src, tableEnd, "lookup codebook"); err != nil {
		return err
	}
	var table [MaxCodebookEntries]float32
	for i := range entries {
		table[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4+i*4:]))
	}

	codes := src[tableEnd:]
	if len(codes) != len(dst) {
		return fmt.Errorf("%w: lookup block has %d codes for %d values", ErrSizeMismatch, len(codes), len(dst))
	}
	for i, c := range codes {
		if int(c) >= entries {
			return fmt.Errorf("%w: lookup code %d at %d outside %d-entry codebook", ErrCorruptPayload, c, i, entries)
		}
		dst[i] = table[c]
	}
	return nil
}

func codebookLen(src []byte) (int, error) {
	if err := need(src, 4, "lookup header"); err != nil {
		return 0, err
	}
	entries := binary.LittleEndian.Uint32(src[0:4])
	if entries == 0 || entries > MaxCodebookEntries {
		return 0, fmt.Errorf("%w: lookup codebook size %d not in 1..%d", ErrCorruptHeader, entries, MaxCodebookEntries)
	}
	return int(entries), nil
}
