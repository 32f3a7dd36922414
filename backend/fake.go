// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package backend

import (
	"sync"

	"github.com/cogentforge/vkr/handle"
)

// FakeTexture is an in-memory Texture for tests; it records writes
// instead of touching a GPU.
type FakeTexture struct {
	Width, Height uint32
	Data          []byte
	Destroyed     bool
}

func (f *FakeTexture) Resize(w, h uint32) error { f.Width, f.Height = w, h; return nil }
func (f *FakeTexture) Write(data []byte) error  { f.Data = append([]byte(nil), data...); return nil }
func (f *FakeTexture) WriteRegion(data []byte, x, y, w, h uint32) error {
	f.Data = append(f.Data, data...)
	return nil
}
func (f *FakeTexture) Destroy() { f.Destroyed = true }

// FakeBuffer is an in-memory DynamicBuffer for tests.
type FakeBuffer struct {
	Data      []byte
	Destroyed bool
}

func (b *FakeBuffer) Update(data []byte) error { b.Data = append([]byte(nil), data...); return nil }
func (b *FakeBuffer) Destroy()                 { b.Destroyed = true }

// FakeDevice is a Device usable in unit tests without any real GPU,
// grounded on the same kind of in-memory fakes the teacher's own
// vgpu_test.go stand-ins use for device-independent logic tests.
type FakeDevice struct {
	mu       sync.Mutex
	textures handle.Table[*FakeTexture]
	buffers  handle.Table[*FakeBuffer]
	boundVB  handle.Handle
	boundIB  handle.Handle
	DrawCalls int

	BarrierCalls    []ImageBarrier
	RenderPassDepth int
	RenderPasses    []RenderTargetDesc
}

func NewFakeDevice() *FakeDevice { return &FakeDevice{} }

func (d *FakeDevice) TextureCreate(desc ImageDesc) (Texture, handle.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := &FakeTexture{Width: desc.Width, Height: desc.Height}
	h := d.textures.Alloc(t)
	return t, h, nil
}

func (d *FakeDevice) VertexBufferCreateDynamic(desc BufferDesc) (DynamicBuffer, handle.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := &FakeBuffer{Data: make([]byte, 0, desc.Size)}
	h := d.buffers.Alloc(b)
	return b, h, nil
}

func (d *FakeDevice) IndexBufferCreateDynamic(desc BufferDesc) (DynamicBuffer, handle.Handle, error) {
	return d.VertexBufferCreateDynamic(desc)
}

func (d *FakeDevice) BindVertexBuffer(h handle.Handle) { d.boundVB = h }
func (d *FakeDevice) BindIndexBuffer(h handle.Handle)  { d.boundIB = h }

func (d *FakeDevice) DrawIndexed(count, instanceCount, firstIndex, vertexOffset, firstInstance uint32) {
	d.DrawCalls++
}

// Barrier records the barriers Execute asked for rather than issuing
// real ones, so tests can assert on exactly what the compiler handed
// the device.
func (d *FakeDevice) Barrier(barriers []ImageBarrier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.BarrierCalls = append(d.BarrierCalls, barriers...)
}

// BeginRenderPass/EndRenderPass track nesting depth and record each
// requested RenderTargetDesc; a fake has no attachments to actually bind.
func (d *FakeDevice) BeginRenderPass(rt RenderTargetDesc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.RenderPassDepth++
	d.RenderPasses = append(d.RenderPasses, rt)
	return nil
}

func (d *FakeDevice) EndRenderPass() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.RenderPassDepth--
}

func (d *FakeDevice) WaitIdle() error { return nil }

// FakeBus is an in-memory Bus for tests.
type FakeBus struct {
	mu   sync.Mutex
	subs map[EventType][]func(Event)
}

func NewFakeBus() *FakeBus { return &FakeBus{subs: make(map[EventType][]func(Event))} }

func (b *FakeBus) Subscribe(t EventType, fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], fn)
	idx := len(b.subs[t]) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs[t][idx] = nil
	}
}

func (b *FakeBus) Publish(e Event) {
	b.mu.Lock()
	fns := append([]func(Event){}, b.subs[e.Type]...)
	b.mu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			fn(e)
		}
	}
}
