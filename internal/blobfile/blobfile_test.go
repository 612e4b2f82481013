package blobfile

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "weights.bin")
	want := []byte{0, 0, 0x80, 0x3f, 0, 0, 0, 0x40}
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatal(err)
	}

	b, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(b.Bytes(), want) {
		t.Fatalf("contents = %v, want %v", b.Bytes(), want)
	}
	if b.Len() != len(want) || b.Name() != path {
		t.Fatalf("len %d name %q", b.Len(), b.Name())
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if b.Bytes() != nil || b.Mapped() {
		t.Fatal("closed blob still exposes data")
	}
}

func TestOpenEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = b.Close() }()
	if b.Len() != 0 || b.Mapped() {
		t.Fatalf("empty file: len %d mapped %v", b.Len(), b.Mapped())
	}
}

func TestOpenMissing(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestFromReaderAt(t *testing.T) {
	t.Parallel()

	src := bytes.Repeat([]byte{1, 2, 3}, 100)
	b, err := FromReaderAt(bytes.NewReader(src), int64(len(src)), 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(b.Bytes(), src) || b.Mapped() {
		t.Fatal("contents mismatch")
	}

	if _, err := FromReaderAt(bytes.NewReader(src), int64(len(src)), 10); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := FromReaderAt(bytes.NewReader(src[:5]), 10, 0); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected short read, got %v", err)
	}
}
