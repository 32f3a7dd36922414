// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vthread

import (
	"sync"
	"sync/atomic"
	"time"
)

var idSeq atomic.Uint64

// Thread is a cooperative-cancel thread handle wrapping a goroutine.
// Cancel only sets a flag; the thread function is expected to poll
// Cancelled and return.
type Thread struct {
	id        uint64
	fn        func(t *Thread)
	cancelled atomic.Bool
	active    atomic.Bool
	done      chan struct{}
}

// Create starts fn in a new goroutine and returns its handle.
func Create(fn func(t *Thread)) *Thread {
	t := &Thread{
		id:   idSeq.Add(1),
		fn:   fn,
		done: make(chan struct{}),
	}
	t.active.Store(true)
	go func() {
		defer close(t.done)
		defer t.active.Store(false)
		t.fn(t)
	}()
	return t
}

// Detach releases this handle's ownership without waiting; the
// goroutine keeps running to completion on its own.
func (t *Thread) Detach() {}

// Cancel sets the cooperative-cancel flag. The thread function must
// poll Cancelled itself; Cancel never interrupts a blocked call.
func (t *Thread) Cancel() { t.cancelled.Store(true) }

// Cancelled reports whether Cancel has been called.
func (t *Thread) Cancelled() bool { return t.cancelled.Load() }

// IsActive reports whether the thread function has not yet returned.
func (t *Thread) IsActive() bool { return t.active.Load() }

// Join blocks until the thread function returns.
func (t *Thread) Join() { <-t.done }

// Destroy is a no-op placeholder matching the spec's create/destroy
// symmetry; Go goroutines need no explicit teardown once joined.
func (t *Thread) Destroy() {}

// ID returns this thread handle's identifier.
func (t *Thread) ID() uint64 { return t.id }

// Sleep pauses the calling goroutine for d.
func Sleep(d time.Duration) { time.Sleep(d) }

// Mutex is a thin rename of sync.Mutex for call-site parity with the
// spec's "mutex offers lock/unlock" wording.
type Mutex = sync.Mutex

// CondVar wraps sync.Cond with the spec's wait/signal/broadcast names.
type CondVar struct {
	cond *sync.Cond
}

// NewCondVar returns a condition variable guarded by m.
func NewCondVar(m *Mutex) *CondVar {
	return &CondVar{cond: sync.NewCond(m)}
}

func (c *CondVar) Wait()        { c.cond.Wait() }
func (c *CondVar) Signal()      { c.cond.Signal() }
func (c *CondVar) Broadcast()   { c.cond.Broadcast() }
