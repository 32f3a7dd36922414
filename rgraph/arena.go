// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rgraph

import (
	"github.com/cogentforge/vkr/alloc"
	"github.com/cogentforge/vkr/backend"
	"github.com/cogentforge/vkr/handle"
)

// Stats holds live/peak resource counts, updated on create/destroy per
// spec.md §4.F.
type Stats struct {
	LiveImages, PeakImages   int
	LiveBuffers, PeakBuffers int
	// PeakPhysicalImages is the peak number of simultaneously live
	// backend-allocated images after transient aliasing, as opposed to
	// PeakImages which counts declared resource slots.
	PeakPhysicalImages int
}

// Graph is the render graph: resource arena (F), pass list built via
// Builder (G), compiled schedule (H), and per-frame executor (I).
type Graph struct {
	device    backend.Device
	numImages int
	// allocator charges allocatePhysical's alias-group scratch
	// bookkeeping against a Scope for the duration of that compile
	// step; see allocatePhysical in compiler.go.
	allocator *alloc.Allocator

	images  handle.Table[*ImageResource]
	buffers handle.Table[*BufferResource]
	passes  []*Pass

	executors map[string]ExecutorEntry

	presentImage  handle.Handle
	exportImages  []handle.Handle
	exportBuffers []handle.Handle

	frame FrameInfo

	compiled bool
	schedule []int // indices into passes, in scheduled order
	culled   map[int]bool
	barriers      map[int][]Barrier // keyed by schedule position
	targets       map[int][]*RenderTarget // keyed by schedule position, one per image index
	finalBarriers []Barrier
	layoutFinal   map[handle.Handle]backend.ImageLayout

	timings []PassTiming

	stats Stats
}

// New returns an empty graph over device, which creates physical
// backend resources for numImages swapchain images.
func New(device backend.Device, numImages int) *Graph {
	return &Graph{
		device:    device,
		numImages: numImages,
		allocator: alloc.NewGeneral(),
		executors: make(map[string]ExecutorEntry),
		culled:    make(map[int]bool),
		barriers:  make(map[int][]Barrier),
		targets:   make(map[int][]*RenderTarget),
	}
}

// Stats returns live/peak resource counters.
func (g *Graph) Stats() Stats { return g.stats }

// CreateImage allocates a slot, copies the name, and records desc.
// PER_IMAGE resources defer physical allocation to compile time.
func (g *Graph) CreateImage(name string, desc ImageDesc, flags ResourceFlags) handle.Handle {
	r := &ImageResource{Name: name, Desc: desc, Flags: flags, firstPass: -1, lastPass: -1}
	h := g.images.Alloc(r)
	g.stats.LiveImages++
	if g.stats.LiveImages > g.stats.PeakImages {
		g.stats.PeakImages = g.stats.LiveImages
	}
	g.compiled = false
	return h
}

// CreateBuffer allocates a buffer-resource slot.
func (g *Graph) CreateBuffer(name string, desc BufferDesc, flags ResourceFlags) handle.Handle {
	r := &BufferResource{Name: name, Desc: desc, Flags: flags, firstPass: -1, lastPass: -1}
	h := g.buffers.Alloc(r)
	g.stats.LiveBuffers++
	if g.stats.LiveBuffers > g.stats.PeakBuffers {
		g.stats.PeakBuffers = g.stats.LiveBuffers
	}
	g.compiled = false
	return h
}

// ImportImage records an externally-owned image: sets EXTERNAL, skips
// physical allocation, and records current layout/access per image index.
func (g *Graph) ImportImage(name string, desc ImageDesc, perImage []handle.Handle, initialLayout backend.ImageLayout) handle.Handle {
	h := g.CreateImage(name, desc, FlagExternal)
	r := g.images.MustGet(h)
	r.ImportH = perImage
	r.layout = make([]backend.ImageLayout, max(1, len(perImage)))
	for i := range r.layout {
		r.layout[i] = initialLayout
	}
	return h
}

// ImportSwapchain imports the present-target color image, one handle
// per swapchain image index.
func (g *Graph) ImportSwapchain(name string, desc ImageDesc, perImage []handle.Handle) handle.Handle {
	return g.ImportImage(name, desc, perImage, backend.LayoutUndefined)
}

// ImportDepth imports an externally-owned depth image.
func (g *Graph) ImportDepth(name string, desc ImageDesc, perImage []handle.Handle) handle.Handle {
	return g.ImportImage(name, desc, perImage, backend.LayoutUndefined)
}

// ImportBuffer records an externally-owned buffer.
func (g *Graph) ImportBuffer(name string, desc BufferDesc, imported handle.Handle) handle.Handle {
	h := g.CreateBuffer(name, desc, FlagExternal)
	r := g.buffers.MustGet(h)
	r.ImportH = imported
	return h
}

// DestroyImage frees an image slot and decrements live stats.
func (g *Graph) DestroyImage(h handle.Handle) {
	if _, ok := g.images.Get(h); !ok {
		return
	}
	g.images.Free(h)
	g.stats.LiveImages--
	g.compiled = false
}

// DestroyBuffer frees a buffer slot and decrements live stats.
func (g *Graph) DestroyBuffer(h handle.Handle) {
	if _, ok := g.buffers.Get(h); !ok {
		return
	}
	g.buffers.Free(h)
	g.stats.LiveBuffers--
	g.compiled = false
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
