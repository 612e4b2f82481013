package wdb

import "encoding/binary"

func encodeHeader(dst []byte, h Header) bool {
	if len(dst) < HeaderSize {
		return false
	}
	copy(dst[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(dst[4:6], h.Major)
	binary.LittleEndian.PutUint16(dst[6:8], h.Minor)
	binary.LittleEndian.PutUint32(dst[8:12], h.BlockCount)
	binary.LittleEndian.PutUint32(dst[12:16], h.Flags)
	return true
}

func decodeHeader(src []byte) (Header, bool) {
	if len(src) < HeaderSize {
		return Header{}, false
	}
	var h Header
	copy(h.Magic[:], src[0:4])
	h.Major = binary.LittleEndian.Uint16(src[4:6])
	h.Minor = binary.LittleEndian.Uint16(src[6:8])
	h.BlockCount = binary.LittleEndian.Uint32(src[8:12])
	h.Flags = binary.LittleEndian.Uint32(src[12:16])
	return h, true
}

func encodeBlockHeader(dst []byte, b BlockHeader) bool {
	if len(dst) < BlockHeaderSize {
		return false
	}
	dst[0] = byte(b.Encoding)
	dst[1] = byte(b.Compression)
	binary.LittleEndian.PutUint16(dst[2:4], b.Reserved)
	binary.LittleEndian.PutUint32(dst[4:8], b.NameLen)
	binary.LittleEndian.PutUint64(dst[8:16], b.Count)
	binary.LittleEndian.PutUint64(dst[16:24], b.PayloadSize)
	return true
}

func decodeBlockHeader(src []byte) (BlockHeader, bool) {
	if len(src) < BlockHeaderSize {
		return BlockHeader{}, false
	}
	return BlockHeader{
		Encoding:    Encoding(src[0]),
		Compression: Compression(src[1]),
		Reserved:    binary.LittleEndian.Uint16(src[2:4]),
		NameLen:     binary.LittleEndian.Uint32(src[4:8]),
		Count:       binary.LittleEndian.Uint64(src[8:16]),
		PayloadSize: binary.LittleEndian.Uint64(src[16:24]),
	}, true
}

func addUint64(a, b uint64) (uint64, bool) {
	if a > ^uint64(0)-b {
		return 0, false
	}
	return a + b, true
}
