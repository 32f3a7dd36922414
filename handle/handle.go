// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package handle provides the generational {id, generation} pair used
// everywhere a module hands out an externally visible reference to a
// heavy, slot-recycled object (pipelines, materials, graph resources).
// id == 0 is the invalid sentinel; generation increments every time
// the underlying slot is recycled so a stale handle can be rejected.
package handle

// InvalidID is the sentinel for an id slot where 0 would otherwise be
// ambiguous with "unused" (e.g. the texture system's explicit invalid
// handle uses it in Generation rather than Id).
const InvalidID uint32 = 0xFFFFFFFF

// Handle is a 64-bit value split into two 32-bit halves: Id and
// Generation.
type Handle struct {
	Id         uint32
	Generation uint32
}

// Invalid is the zero handle: Id == 0.
var Invalid = Handle{}

// IsValid reports whether h carries a non-zero id.
func (h Handle) IsValid() bool { return h.Id != 0 }

// Equal reports total, cheap equality between two handles.
func (h Handle) Equal(o Handle) bool { return h.Id == o.Id && h.Generation == o.Generation }

// nextGeneration returns the generation that follows cur on slot
// recycle: generations wrap to 1, never 0, so a zero generation never
// collides with a freshly zeroed slot.
func nextGeneration(cur uint32) uint32 {
	if cur == 0xFFFFFFFF {
		return 1
	}
	return cur + 1
}

// Slot is a generic generation-tracked slot usable as the storage unit
// for dense handle-indexed arrays (pipeline.Pipeline, material.Material,
// rgraph image/buffer resources all embed one of these, or reimplement
// the same Id-1 indexing directly).
type Slot[T any] struct {
	Generation uint32
	Live       bool
	Value      T
}

// Table is a dense, freelist-backed array of generation-tracked slots
// indexed by handle.Id - 1, the arena+indices pattern spec.md §9
// prescribes for cyclic cross-references.
type Table[T any] struct {
	slots    []Slot[T]
	freelist []uint32
}

// Alloc installs value in a recycled or new slot and returns its
// handle with generation strictly greater than any previous occupant
// of that slot.
func (t *Table[T]) Alloc(value T) Handle {
	if n := len(t.freelist); n > 0 {
		idx := t.freelist[n-1]
		t.freelist = t.freelist[:n-1]
		s := &t.slots[idx]
		s.Generation = nextGeneration(s.Generation)
		s.Live = true
		s.Value = value
		return Handle{Id: idx + 1, Generation: s.Generation}
	}
	t.slots = append(t.slots, Slot[T]{Generation: 1, Live: true, Value: value})
	return Handle{Id: uint32(len(t.slots)), Generation: 1}
}

// Get returns the value for h and whether h resolves to a live slot
// with a matching generation.
func (t *Table[T]) Get(h Handle) (T, bool) {
	var zero T
	if !h.IsValid() || int(h.Id) > len(t.slots) {
		return zero, false
	}
	s := &t.slots[h.Id-1]
	if !s.Live || s.Generation != h.Generation {
		return zero, false
	}
	return s.Value, true
}

// MustGet returns a pointer to the live value backing h for in-place
// mutation, or nil if h does not resolve.
func (t *Table[T]) MustGet(h Handle) *T {
	if !h.IsValid() || int(h.Id) > len(t.slots) {
		return nil
	}
	s := &t.slots[h.Id-1]
	if !s.Live || s.Generation != h.Generation {
		return nil
	}
	return &s.Value
}

// Range calls fn with the handle of every currently live slot, in
// ascending Id order.
func (t *Table[T]) Range(fn func(h Handle)) {
	for i, s := range t.slots {
		if s.Live {
			fn(Handle{Id: uint32(i) + 1, Generation: s.Generation})
		}
	}
}

// Free recycles h's slot onto the freelist. It is a no-op if h does
// not resolve to a live slot.
func (t *Table[T]) Free(h Handle) {
	if !h.IsValid() || int(h.Id) > len(t.slots) {
		return
	}
	idx := h.Id - 1
	s := &t.slots[idx]
	if !s.Live || s.Generation != h.Generation {
		return
	}
	s.Live = false
	var zero T
	s.Value = zero
	t.freelist = append(t.freelist, idx)
}
