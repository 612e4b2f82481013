package weights

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/samcharles93/weightdecode/pkg/wdb"
)

// sparse stores only the non-zero values of a tensor:
//
//	nnz u32 | indices [nnz]u32 | values [nnz]f32
//
// Positions not listed decode to zero. Each index must fall in [0, n) and
// appear at most once, so every output position is written exactly once.
type sparse struct{}

func (sparse) Encoding() wdb.Encoding { return wdb.EncodingSparse }

func (sparse) Frame(src []byte, n int) (int, error) {
	nnz, err := sparseCount(src, n)
	if err != nil {
		return 0, err
	}
	size, err := blockBytes("sparse", 4, nnz*8)
	if err != nil {
		return 0, err
	}
	if err := need(src, size, "sparse"); err != nil {
		return 0, err
	}
	return size, nil
}

// MaxFrame assumes every position is listed.
func (sparse) MaxFrame(n int) (int, bool) {
	pairs, ok := mulInt(n, 8)
	if !ok {
		return 0, false
	}
	return boundedSum(4, pairs)
}

func (sparse) Decode(dst []float32, src []byte) error {
	n := len(dst)
	nnz, err := sparseCount(src, n)
	if err != nil {
		return err
	}
	if len(src) != 4+nnz*8 {
		return fmt.Errorf("%w: sparse block is %d bytes for %d entries", ErrSizeMismatch, len(src), nnz)
	}
	indices := src[4 : 4+nnz*4]
	values := src[4+nnz*4:]

	clear(dst)
	seen := make([]uint64, (n+63)/64)
	for k := range nnz {
		idx := binary.LittleEndian.Uint32(indices[k*4:])
		if uint64(idx) >= uint64(n) {
			return fmt.Errorf("%w: sparse index %d outside [0,%d)", ErrCorruptPayload, idx, n)
		}
		word, bit := idx/64, uint64(1)<<(idx%64)
		if seen[word]&bit != 0 {
			return fmt.Errorf("%w: sparse index %d repeated", ErrCorruptPayload, idx)
		}
		seen[word] |= bit
		dst[idx] = math.Float32frombits(binary.LittleEndian.Uint32(values[k*4:]))
	}
	return nil
}

func sparseCount(src []byte, n int) (int, error) {
	if err := need(src, 4, "sparse header"); err != nil {
		return 0, err
	}
	nnz := binary.LittleEndian.Uint32(src[0:4])
	if uint64(nnz) > uint64(n) {
		return 0, fmt.Errorf("%w: sparse block lists %d entries for %d values", ErrCorruptHeader, nnz, n)
	}
	return int(nnz), nil
}
