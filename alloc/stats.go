// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package alloc

import (
	"fmt"
	"strings"

	"github.com/cogentforge/vkr/vthread"
)

// Stats holds one allocator's (or the process-wide aggregate's)
// bookkeeping: global counters, per-tag bytes, and temp-scope counters.
type Stats struct {
	Allocs   vthread.U64
	Frees    vthread.U64
	Reallocs vthread.U64
	Zeros    vthread.U64
	Copies   vthread.U64
	Sets     vthread.U64

	TotalAllocatedBytes vthread.U64
	PerTagBytes         [tagCount]vthread.U64

	ScopesCreated   vthread.U64
	ScopesDestroyed vthread.U64
	CurrentTempBytes vthread.U64
	PeakTempBytes    vthread.U64
}

// process is the single process-wide atomic aggregate spec.md §9
// names as the only true global. It is a package-level var, not a
// lazily-initialized singleton, so there is no dynamic init ordering
// hazard.
var process Stats

// Process returns the process-wide aggregate statistics.
func Process() *Stats { return &process }

func (s *Stats) recordAlloc(size uint64, tag Tag) {
	s.Allocs.FetchAdd(1, vthread.Relaxed)
	s.TotalAllocatedBytes.FetchAdd(size, vthread.Relaxed)
	s.PerTagBytes[tag].FetchAdd(size, vthread.Relaxed)
}

func (s *Stats) recordFree(size uint64, tag Tag) {
	s.Frees.FetchAdd(1, vthread.Relaxed)
	s.TotalAllocatedBytes.SaturatingSub(size, vthread.Relaxed)
	s.PerTagBytes[tag].SaturatingSub(size, vthread.Relaxed)
}

func (s *Stats) recordTempDelta(delta int64) {
	if delta > 0 {
		cur := s.CurrentTempBytes.FetchAdd(uint64(delta), vthread.Relaxed) + uint64(delta)
		vthread.RaisePeak(&s.PeakTempBytes, cur)
	} else if delta < 0 {
		s.CurrentTempBytes.SaturatingSub(uint64(-delta), vthread.Relaxed)
	}
}

// Snapshot is a point-in-time copy of Stats safe to read without
// racing further atomic updates, obtained via acquire loads.
type Snapshot struct {
	Allocs, Frees, Reallocs, Zeros, Copies, Sets uint64
	TotalAllocatedBytes                         uint64
	PerTagBytes                                 [tagCount]uint64
	ScopesCreated, ScopesDestroyed               uint64
	CurrentTempBytes, PeakTempBytes              uint64
}

// Snapshot takes an acquire-ordered read of every field.
func (s *Stats) Snapshot() Snapshot {
	var snap Snapshot
	snap.Allocs = s.Allocs.Load(vthread.Acquire)
	snap.Frees = s.Frees.Load(vthread.Acquire)
	snap.Reallocs = s.Reallocs.Load(vthread.Acquire)
	snap.Zeros = s.Zeros.Load(vthread.Acquire)
	snap.Copies = s.Copies.Load(vthread.Acquire)
	snap.Sets = s.Sets.Load(vthread.Acquire)
	snap.TotalAllocatedBytes = s.TotalAllocatedBytes.Load(vthread.Acquire)
	for i := range s.PerTagBytes {
		snap.PerTagBytes[i] = s.PerTagBytes[i].Load(vthread.Acquire)
	}
	snap.ScopesCreated = s.ScopesCreated.Load(vthread.Acquire)
	snap.ScopesDestroyed = s.ScopesDestroyed.Load(vthread.Acquire)
	snap.CurrentTempBytes = s.CurrentTempBytes.Load(vthread.Acquire)
	snap.PeakTempBytes = s.PeakTempBytes.Load(vthread.Acquire)
	return snap
}

// units1024 are the base-1024 suffixes pretty-printing walks through.
var units1024 = []string{"B", "KiB", "MiB", "GiB", "TiB"}

func formatBytes1024(b uint64) string {
	v := float64(b)
	i := 0
	for v >= 1024 && i < len(units1024)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.2f%s", v, units1024[i])
}

// Pretty formats every tag's byte count with base-1024 units into a
// single allocator-owned buffer, per spec.md §4.A.
func (snap Snapshot) Pretty() string {
	var b strings.Builder
	fmt.Fprintf(&b, "total=%s allocs=%d frees=%d reallocs=%d\n",
		formatBytes1024(snap.TotalAllocatedBytes), snap.Allocs, snap.Frees, snap.Reallocs)
	for i, bytes := range snap.PerTagBytes {
		if bytes == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %-10s %s\n", Tag(i).String(), formatBytes1024(bytes))
	}
	fmt.Fprintf(&b, "temp: current=%s peak=%s scopes=%d/%d\n",
		formatBytes1024(snap.CurrentTempBytes), formatBytes1024(snap.PeakTempBytes),
		snap.ScopesCreated, snap.ScopesDestroyed)
	return b.String()
}
