// Package blobfile loads weight streams and layouts from disk as a single
// byte slice, memory-mapping the file when the platform allows it.
package blobfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// ErrTooLarge is returned for inputs that cannot be addressed as one slice
// or that exceed a caller's limit.
var ErrTooLarge = errors.New("blobfile: input too large")

const maxInt = int64(int(^uint(0) >> 1))

// Blob is a read-only view of a file's contents.
type Blob struct {
	data    []byte
	mmapped bool
	name    string
}

// Open maps path read-only. If mmap is unavailable it falls back to reading
// the file into memory. The blob must be closed to release any mapping, and
// Bytes must not be used after Close.
func Open(path string) (*Blob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !st.Mode().IsRegular() {
		// Pipes and devices have no stable size to map.
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		return &Blob{data: data, name: path}, nil
	}
	size := st.Size()
	if size > maxInt {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, path, size)
	}
	if size == 0 {
		return &Blob{data: []byte{}, name: path}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		return &Blob{data: data, mmapped: true, name: path}, nil
	}

	data, err = readAllAt(f, int(size))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Blob{data: data, name: path}, nil
}

// FromReaderAt copies size bytes from r. Uploaded multipart files land here.
func FromReaderAt(r io.ReaderAt, size, limit int64) (*Blob, error) {
	if size < 0 {
		return nil, fmt.Errorf("blobfile: negative size %d", size)
	}
	if size > maxInt || (limit > 0 && size > limit) {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	data, err := readAllAt(r, int(size))
	if err != nil {
		return nil, err
	}
	return &Blob{data: data}, nil
}

// Bytes returns the contents. The slice aliases the mapping when Mapped.
func (b *Blob) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

func (b *Blob) Len() int { return len(b.Bytes()) }

// Mapped reports whether the contents are backed by mmap.
func (b *Blob) Mapped() bool { return b != nil && b.mmapped }

func (b *Blob) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

// Close releases the mapping. It is safe to call more than once.
func (b *Blob) Close() error {
	if b == nil || b.data == nil {
		return nil
	}
	var err error
	if b.mmapped {
		err = unix.Munmap(b.data)
	}
	b.data = nil
	b.mmapped = false
	return err
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) && off == int64(size) {
			break
		}
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("short read: %d of %d bytes: %w", off, size, io.ErrUnexpectedEOF)
		}
		return nil, err
	}
	return out, nil
}
