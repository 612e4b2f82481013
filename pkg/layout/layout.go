// Package layout describes where each decoded weight tensor lives inside the
// shared output buffer an inference runtime reads from.
//
// A MemoryLayout is produced by the model loader and treated as read-only
// input by the decoder. It is validated once per decode call, before any
// weight byte is looked at.
package layout

import (
	"cmp"
	"slices"
)

// MemoryLayout declares the total buffer size and the named allocations
// within it. Sizes and offsets are in elements, not bytes.
type MemoryLayout struct {
	TotalSize   int                   `json:"total_size" yaml:"total_size"`
	Allocations map[string]Allocation `json:"allocations" yaml:"allocations"`
}

// Allocation is a single named region of the output buffer.
type Allocation struct {
	Name   string `json:"name" yaml:"name"`
	Offset int    `json:"offset" yaml:"offset"`
	Size   int    `json:"size" yaml:"size"`
}

// End returns the first element index past the allocation.
func (a Allocation) End() int {
	return a.Offset + a.Size
}

// Entry pairs an allocation with its key in the layout map.
type Entry struct {
	Key string
	Allocation
}

// Ordered returns the allocations sorted by (Offset, Size, Name, Key).
//
// This order is part of the plain stream wire format: blocks of a headerless
// stream appear in exactly this sequence, one per allocation.
func (m *MemoryLayout) Ordered() []Entry {
	if m == nil || len(m.Allocations) == 0 {
		return nil
	}
	out := make([]Entry, 0, len(m.Allocations))
	for k, a := range m.Allocations {
		out = append(out, Entry{Key: k, Allocation: a})
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return cmp.Or(
			cmp.Compare(a.Offset, b.Offset),
			cmp.Compare(a.Size, b.Size),
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.Key, b.Key),
		)
	})
	return out
}

// Lookup finds an allocation by tensor name.
func (m *MemoryLayout) Lookup(name string) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	for k, a := range m.Allocations {
		if a.Name == name {
			return Entry{Key: k, Allocation: a}, true
		}
	}
	return Entry{}, false
}

// ByName indexes the allocations by tensor name. The layout must be valid,
// otherwise later duplicates overwrite earlier ones.
func (m *MemoryLayout) ByName() map[string]Entry {
	if m == nil {
		return nil
	}
	out := make(map[string]Entry, len(m.Allocations))
	for k, a := range m.Allocations {
		out[a.Name] = Entry{Key: k, Allocation: a}
	}
	return out
}

// Len returns the number of allocations.
func (m *MemoryLayout) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Allocations)
}
