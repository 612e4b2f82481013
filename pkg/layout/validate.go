package layout

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is the sentinel behind every layout validation failure.
var ErrInvalid = errors.New("invalid memory layout")

// Error reports a layout violation and the allocations involved.
type Error struct {
	Allocations []string
	Reason      string
}

func (e *Error) Error() string {
	if len(e.Allocations) == 0 {
		return "layout: " + e.Reason
	}
	return fmt.Sprintf("layout: %s (%s)", e.Reason, strings.Join(e.Allocations, ", "))
}

func (e *Error) Unwrap() error {
	return ErrInvalid
}

func newError(reason string, names ...string) error {
	return &Error{Allocations: names, Reason: reason}
}

// Validate checks that every allocation fits inside the buffer, that names are
// unique and that no two non-empty allocations overlap.
func (m *MemoryLayout) Validate() error {
	if m == nil {
		return newError("nil layout")
	}
	if m.TotalSize < 0 {
		return newError(fmt.Sprintf("negative total_size %d", m.TotalSize))
	}

	names := make(map[string]string, len(m.Allocations))
	for k, a := range m.Allocations {
		label := describe(k, a)
		if a.Offset < 0 {
			return newError(fmt.Sprintf("negative offset %d", a.Offset), label)
		}
		if a.Size < 0 {
			return newError(fmt.Sprintf("negative size %d", a.Size), label)
		}
		// offset+size <= total, written so it cannot overflow.
		if a.Offset > m.TotalSize || a.Size > m.TotalSize-a.Offset {
			return newError(
				fmt.Sprintf("offset %d + size %d exceeds total_size %d", a.Offset, a.Size, m.TotalSize),
				label,
			)
		}
		if prev, ok := names[a.Name]; ok {
			return newError(fmt.Sprintf("duplicate name %q", a.Name), prev, label)
		}
		names[a.Name] = label
	}

	ordered := m.Ordered()
	var (
		last    Entry
		hasLast bool
	)
	for _, e := range ordered {
		if e.Size == 0 {
			continue
		}
		if hasLast && rangesOverlap(last.Offset, last.End(), e.Offset, e.End()) {
			return newError("overlapping allocations", describe(last.Key, last.Allocation), describe(e.Key, e.Allocation))
		}
		// Keep the allocation reaching furthest so a long region followed by
		// several short ones is still caught.
		if !hasLast || e.End() > last.End() {
			last = e
			hasLast = true
		}
	}
	return nil
}

func rangesOverlap(a0, a1, b0, b1 int) bool {
	// half-open ranges [a0,a1) and [b0,b1)
	return a0 < b1 && b0 < a1
}

func describe(key string, a Allocation) string {
	if a.Name == "" || a.Name == key {
		return fmt.Sprintf("%q [%d,%d)", key, a.Offset, a.Offset+a.Size)
	}
	return fmt.Sprintf("%q/%q [%d,%d)", key, a.Name, a.Offset, a.Offset+a.Size)
}
