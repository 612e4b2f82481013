package wdb

import (
	"fmt"
	"unsafe"
)

// Block is a parsed view of one container block.
type Block struct {
	BlockHeader
	Name string

	// Payload references the parsed data (zero-copy) and is still compressed
	// when Compression != CompressionNone.
	Payload []byte

	// Offset is the absolute position of the block header in the container.
	Offset uint64
}

// Container is a validated view over an encoded weight blob.
type Container struct {
	Header Header
	Blocks []Block
}

// Parse validates the container framing and returns a view over data.
// Block payloads alias data; the caller must keep it alive and unmodified.
// Parse does not decode or decompress payloads.
func Parse(data []byte) (*Container, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: container header needs %d bytes, have %d", ErrTruncated, HeaderSize, len(data))
	}
	hdr, ok := decodeHeader(data[:HeaderSize])
	if !ok {
		return nil, ErrCorruptHeader
	}
	if !hdr.Valid() {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruptHeader, hdr.Magic[:])
	}
	if !hdr.Compatible() {
		return nil, fmt.Errorf("%w: unsupported major version %d", ErrCorruptHeader, hdr.Major)
	}
	if hdr.Flags != 0 {
		return nil, fmt.Errorf("%w: unknown header flags 0x%x", ErrCorruptHeader, hdr.Flags)
	}

	size := uint64(len(data))
	// Every block needs at least a block header, which bounds a lying count.
	if uint64(hdr.BlockCount) > (size-HeaderSize)/BlockHeaderSize {
		return nil, fmt.Errorf("%w: %d blocks declared, %d bytes remain", ErrTruncated, hdr.BlockCount, size-HeaderSize)
	}

	blocks := make([]Block, 0, hdr.BlockCount)
	seen := make(map[string]int, hdr.BlockCount)
	off := uint64(HeaderSize)
	for i := uint32(0); i < hdr.BlockCount; i++ {
		if size-off < BlockHeaderSize {
			return nil, fmt.Errorf("%w: block %d header", ErrTruncated, i)
		}
		bh, ok := decodeBlockHeader(data[off : off+BlockHeaderSize])
		if !ok {
			return nil, fmt.Errorf("%w: block %d", ErrCorruptHeader, i)
		}
		if bh.Reserved != 0 {
			return nil, fmt.Errorf("%w: block %d reserved bits set", ErrCorruptHeader, i)
		}
		if bh.Encoding == EncodingUnknown {
			return nil, fmt.Errorf("%w: block %d has no encoding", ErrUnsupportedEncoding, i)
		}
		if bh.Compression > CompressionZstd {
			return nil, fmt.Errorf("%w: block %d compression %s", ErrUnsupportedEncoding, i, bh.Compression)
		}

		nameStart := off + BlockHeaderSize
		payloadStart, ok := addUint64(nameStart, uint64(bh.NameLen))
		if !ok || payloadStart > size {
			return nil, fmt.Errorf("%w: block %d name", ErrTruncated, i)
		}
		end, ok := addUint64(payloadStart, bh.PayloadSize)
		if !ok || end > size {
			return nil, fmt.Errorf("%w: block %d payload needs %d bytes, have %d", ErrTruncated, i, bh.PayloadSize, size-payloadStart)
		}

		nameBytes := data[nameStart:payloadStart]
		name := ""
		if len(nameBytes) > 0 {
			// Zero-copy string view; data outlives the container by contract.
			name = unsafe.String(unsafe.SliceData(nameBytes), len(nameBytes))
		}
		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: blocks %d and %d both target %q", ErrCorruptHeader, prev, i, name)
		}
		seen[name] = int(i)

		blocks = append(blocks, Block{
			BlockHeader: bh,
			Name:        name,
			Payload:     data[payloadStart:end],
			Offset:      off,
		})
		off = end
	}
	if off != size {
		return nil, fmt.Errorf("%w: %d trailing bytes after final block", ErrCorruptHeader, size-off)
	}

	return &Container{Header: hdr, Blocks: blocks}, nil
}

// Find returns the block targeting the named allocation.
func (c *Container) Find(name string) (*Block, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Blocks {
		if c.Blocks[i].Name == name {
			return &c.Blocks[i], true
		}
	}
	return nil, false
}
