package wdb

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// BlockSpec is the input to Writer.WriteBlock. Payload holds the encoded,
// uncompressed block bytes; the writer applies Compression.
type BlockSpec struct {
	Name        string
	Encoding    Encoding
	Compression Compression
	Count       uint64
	Payload     []byte
}

// Writer assembles a container. Blocks are buffered until Finalise, which
// writes them sorted by name so identical inputs produce identical bytes.
type Writer struct {
	w      io.Writer
	blocks []BlockSpec
	seen   map[string]struct{}
	closed bool

	mu sync.Mutex
}

// NewWriter creates a container writer targeting w.
func NewWriter(w io.Writer) (*Writer, error) {
	if w == nil {
		return nil, errors.New("wdb: nil writer")
	}
	return &Writer{
		w:    w,
		seen: make(map[string]struct{}),
	}, nil
}

// WriteBlock compresses and records a block. A name may only be written once.
func (w *Writer) WriteBlock(b BlockSpec) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("wdb: writer already finalised")
	}
	if b.Encoding == EncodingUnknown {
		return fmt.Errorf("wdb: block %q has no encoding", b.Name)
	}
	if _, ok := w.seen[b.Name]; ok {
		return fmt.Errorf("wdb: duplicate block %q", b.Name)
	}
	if uint64(len(b.Name)) > uint64(^uint32(0)) {
		return fmt.Errorf("wdb: block name too long")
	}

	payload, err := Compress(b.Compression, b.Payload)
	if err != nil {
		return fmt.Errorf("wdb: block %q: %w", b.Name, err)
	}
	b.Payload = payload
	w.blocks = append(w.blocks, b)
	w.seen[b.Name] = struct{}{}
	return nil
}

// Finalise writes the header and all blocks. The writer cannot be reused.
func (w *Writer) Finalise() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("wdb: writer already finalised")
	}
	w.closed = true

	if uint64(len(w.blocks)) > uint64(^uint32(0)) {
		return errors.New("wdb: too many blocks")
	}
	sort.Slice(w.blocks, func(i, j int) bool { return w.blocks[i].Name < w.blocks[j].Name })

	var header Header
	copy(header.Magic[:], Magic)
	header.Major = CurrentMajor
	header.Minor = CurrentMinor
	header.BlockCount = uint32(len(w.blocks))

	var hdrBuf [HeaderSize]byte
	if !encodeHeader(hdrBuf[:], header) {
		return errors.New("wdb: encode header failed")
	}
	if err := writeFull(w.w, hdrBuf[:]); err != nil {
		return err
	}

	var blkBuf [BlockHeaderSize]byte
	for _, b := range w.blocks {
		bh := BlockHeader{
			Encoding:    b.Encoding,
			Compression: b.Compression,
			NameLen:     uint32(len(b.Name)),
			Count:       b.Count,
			PayloadSize: uint64(len(b.Payload)),
		}
		if !encodeBlockHeader(blkBuf[:], bh) {
			return errors.New("wdb: encode block header failed")
		}
		if err := writeFull(w.w, blkBuf[:]); err != nil {
			return err
		}
		if err := writeFull(w.w, []byte(b.Name)); err != nil {
			return err
		}
		if err := writeFull(w.w, b.Payload); err != nil {
			return err
		}
	}
	w.blocks = nil
	return nil
}

func writeFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}
