// Package wdb implements the Weight Data Blob container format.
//
// A WDB container is a self-describing sequence of encoded weight blocks, one
// per tensor. Each block names the allocation it targets, so block order in
// the stream carries no meaning. The container says nothing about where a
// tensor lands in memory; that is the memory layout's job.
//
// Layout (all integers little-endian):
//
//	header   magic "WDB\0" | major u16 | minor u16 | block_count u32 | flags u32
//	block    encoding u8 | compression u8 | reserved u16 | name_len u32 |
//	         count u64 | payload_size u64 | name | payload
//
// No bytes may follow the final block.
package wdb

// WDB global constants must never change.
const (
	// Magic is the container magic, encoded as "WDB\0".
	Magic = "WDB\x00"

	// CurrentMajor changes only on breaking format changes.
	CurrentMajor uint16 = 1

	// CurrentMinor may add optional fields in reserved space.
	CurrentMinor uint16 = 0

	HeaderSize      = 16
	BlockHeaderSize = 24
)

// Header is the fixed container header.
type Header struct {
	Magic      [4]byte
	Major      uint16
	Minor      uint16
	BlockCount uint32
	Flags      uint32
}

func (h *Header) Valid() bool {
	return string(h.Magic[:]) == Magic
}

func (h *Header) Compatible() bool {
	return h.Major == CurrentMajor
}

// BlockHeader is the fixed part of a block record. Name and payload follow it.
type BlockHeader struct {
	Encoding    Encoding
	Compression Compression
	Reserved    uint16
	NameLen     uint32
	Count       uint64 // decoded element count
	PayloadSize uint64 // stored bytes, after compression
}

// HasMagic reports whether data starts with a container header.
func HasMagic(data []byte) bool {
	return len(data) >= HeaderSize && string(data[:4]) == Magic
}
