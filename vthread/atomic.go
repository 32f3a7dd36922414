// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vthread wraps sync/atomic and sync into the memory-order
// parameterized atomic contract the allocator builds its statistics
// on, plus a cooperative-cancel thread handle.
// Go's memory model gives every sync/atomic operation sequentially
// consistent semantics, so the Order parameter below is bookkeeping
// for callers migrating from a weaker-ordering source, not a behavior
// switch.
package vthread

import "sync/atomic"

// Order names a memory order. Go atomics are always seq-cst; Order is
// accepted by every op below for call-site documentation only.
type Order int

const (
	Relaxed Order = iota
	Consume
	Acquire
	Release
	AcqRel
	SeqCst
)

// Bool is an atomic boolean.
type Bool struct{ v atomic.Bool }

func (b *Bool) Load(_ Order) bool    { return b.v.Load() }
func (b *Bool) Store(val bool, _ Order) { b.v.Store(val) }
func (b *Bool) Exchange(val bool, _ Order) bool { return b.v.Swap(val) }
func (b *Bool) CompareExchange(old, new bool, _ Order) bool {
	return b.v.CompareAndSwap(old, new)
}

// I32 is an atomic signed 32-bit counter.
type I32 struct{ v atomic.Int32 }

func (a *I32) Load(_ Order) int32       { return a.v.Load() }
func (a *I32) Store(val int32, _ Order) { a.v.Store(val) }
func (a *I32) FetchAdd(delta int32, _ Order) int32 { return a.v.Add(delta) - delta }
func (a *I32) FetchSub(delta int32, _ Order) int32 { return a.v.Add(-delta) + delta }
func (a *I32) CompareExchange(old, new int32, _ Order) bool {
	return a.v.CompareAndSwap(old, new)
}

// U32 is an atomic unsigned 32-bit counter.
type U32 struct{ v atomic.Uint32 }

func (a *U32) Load(_ Order) uint32       { return a.v.Load() }
func (a *U32) Store(val uint32, _ Order) { a.v.Store(val) }
func (a *U32) FetchAdd(delta uint32, _ Order) uint32 { return a.v.Add(delta) - delta }
func (a *U32) CompareExchange(old, new uint32, _ Order) bool {
	return a.v.CompareAndSwap(old, new)
}

// I64 is an atomic signed 64-bit counter.
type I64 struct{ v atomic.Int64 }

func (a *I64) Load(_ Order) int64       { return a.v.Load() }
func (a *I64) Store(val int64, _ Order) { a.v.Store(val) }
func (a *I64) FetchAdd(delta int64, _ Order) int64 { return a.v.Add(delta) - delta }
func (a *I64) FetchSub(delta int64, _ Order) int64 { return a.v.Add(-delta) + delta }
func (a *I64) CompareExchange(old, new int64, _ Order) bool {
	return a.v.CompareAndSwap(old, new)
}

// U64 is an atomic unsigned 64-bit counter, the backing type for every
// byte-accounting field in the allocator statistics.
type U64 struct{ v atomic.Uint64 }

func (a *U64) Load(_ Order) uint64       { return a.v.Load() }
func (a *U64) Store(val uint64, _ Order) { a.v.Store(val) }
func (a *U64) FetchAdd(delta uint64, _ Order) uint64 { return a.v.Add(delta) - delta }
func (a *U64) CompareExchange(old, new uint64, _ Order) bool {
	return a.v.CompareAndSwap(old, new)
}

// SaturatingSub decrements a by delta, clamping at zero instead of
// wrapping, via a CAS retry loop per spec.md §5's ordering guarantees.
func (a *U64) SaturatingSub(delta uint64, _ Order) uint64 {
	for {
		old := a.v.Load()
		next := uint64(0)
		if old > delta {
			next = old - delta
		}
		if a.v.CompareAndSwap(old, next) {
			return next
		}
	}
}

// RaisePeak sets a to val if val is greater than the current value,
// via a relaxed-load CAS retry loop. Only increasing values can win
// the race, so no overshoot is possible.
func RaisePeak(peak *U64, val uint64) {
	for {
		cur := peak.v.Load()
		if val <= cur {
			return
		}
		if peak.v.CompareAndSwap(cur, val) {
			return
		}
	}
}
