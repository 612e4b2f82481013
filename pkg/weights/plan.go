package weights

import (
	"fmt"

	"github.com/samcharles93/weightdecode/pkg/layout"
	"github.com/samcharles93/weightdecode/pkg/wdb"
)

// block is one framed unit of work: an encoded payload and the sub-range of
// the output buffer it fills.
type block struct {
	entry       layout.Entry
	encoding    wdb.Encoding
	compression wdb.Compression
	variant     Variant
	payload     []byte
}

func (b *block) wrap(err error) error {
	if err == nil {
		return nil
	}
	return &BlockError{Allocation: b.entry.Name, Encoding: b.encoding, Err: err}
}

// planPlain frames a headerless stream. It returns the number of bytes left
// over after the final block.
func (d *Decoder) planPlain(data []byte, ml *layout.MemoryLayout, enc wdb.Encoding) ([]block, int, error) {
	v, err := d.variants.lookup(enc)
	if err != nil {
		return nil, 0, err
	}
	entries := ml.Ordered()
	blocks := make([]block, 0, len(entries))
	off := 0
	for _, e := range entries {
		b := block{entry: e, encoding: enc, variant: v}
		size, err := v.Frame(data[off:], e.Size)
		if err != nil {
			return nil, 0, b.wrap(err)
		}
		b.payload = data[off : off+size : off+size]
		blocks = append(blocks, b)
		off += size
	}
	return blocks, len(data) - off, nil
}

// planContainer frames a WDB container and matches its blocks to the layout
// by name. Every allocation must be covered by exactly one block.
func (d *Decoder) planContainer(data []byte, ml *layout.MemoryLayout) ([]block, error) {
	c, err := wdb.Parse(data)
	if err != nil {
		return nil, err
	}

	byName := ml.ByName()
	blocks := make([]block, 0, len(c.Blocks))
	covered := make(map[string]struct{}, len(c.Blocks))
	for i := range c.Blocks {
		cb := &c.Blocks[i]
		e, ok := byName[cb.Name]
		if !ok {
			return nil, &layout.Error{
				Allocations: []string{cb.Name},
				Reason:      "weight stream has a block for an allocation the layout does not declare",
			}
		}
		b := block{
			entry:       e,
			encoding:    cb.Encoding,
			compression: cb.Compression,
			payload:     cb.Payload,
		}
		v, err := d.variants.lookup(cb.Encoding)
		if err != nil {
			return nil, b.wrap(err)
		}
		b.variant = v
		if cb.Count != uint64(e.Size) {
			return nil, b.wrap(fmt.Errorf("%w: block holds %d values, allocation size is %d", ErrSizeMismatch, cb.Count, e.Size))
		}
		if cb.Compression == wdb.CompressionNone {
			// Uncompressed payloads can be framed now; compressed ones are
			// framed after inflating, on the worker.
			size, err := v.Frame(cb.Payload, e.Size)
			if err != nil {
				return nil, b.wrap(err)
			}
			if size != len(cb.Payload) {
				return nil, b.wrap(fmt.Errorf("%w: payload is %d bytes, encoding uses %d", ErrSizeMismatch, len(cb.Payload), size))
			}
		}
		blocks = append(blocks, b)
		covered[cb.Name] = struct{}{}
	}

	for _, e := range ml.Ordered() {
		if _, ok := covered[e.Name]; !ok {
			return nil, &BlockError{
				Allocation: e.Name,
				Err:        fmt.Errorf("%w: weight stream has no block for this allocation", ErrTruncatedData),
			}
		}
	}
	return blocks, nil
}
