package weights

import (
	"errors"
	"fmt"

	"github.com/samcharles93/weightdecode/pkg/layout"
	"github.com/samcharles93/weightdecode/pkg/wdb"
)

// Error kinds. Every decode failure wraps exactly one of these.
var (
	ErrLayout              = layout.ErrInvalid
	ErrTruncatedData       = wdb.ErrTruncated
	ErrCorruptHeader       = wdb.ErrCorruptHeader
	ErrCorruptPayload      = wdb.ErrCorruptPayload
	ErrUnsupportedEncoding = wdb.ErrUnsupportedEncoding
	ErrSizeMismatch        = wdb.ErrSizeMismatch
)

// BlockError attributes a decode failure to the allocation being decoded.
type BlockError struct {
	Allocation string
	Encoding   wdb.Encoding
	Err        error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("weights: allocation %q (%s): %v", e.Allocation, e.Encoding, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

// Kind returns a stable short name for the error kind wrapped by err, or
// "internal" when err matches none of them.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLayout):
		return "layout_error"
	case errors.Is(err, ErrTruncatedData):
		return "truncated_data"
	case errors.Is(err, ErrCorruptHeader):
		return "corrupt_header"
	case errors.Is(err, ErrCorruptPayload):
		return "corrupt_payload"
	case errors.Is(err, ErrUnsupportedEncoding):
		return "unsupported_encoding"
	case errors.Is(err, ErrSizeMismatch):
		return "size_mismatch"
	default:
		return "internal"
	}
}
