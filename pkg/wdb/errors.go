package wdb

import "errors"

var (
	ErrTruncated           = errors.New("truncated weight data")
	ErrCorruptHeader       = errors.New("corrupt block header")
	ErrCorruptPayload      = errors.New("corrupt block payload")
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
	ErrSizeMismatch        = errors.New("size mismatch")
)
