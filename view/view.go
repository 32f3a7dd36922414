// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package view implements the named, ordered view-layer system of
// spec.md §3.6/§4.K: world, UI, shadow and similar layers register
// lifecycle callbacks and a set of pass configs, and are driven once
// per frame in ascending order. Layers do not talk to the graph
// compiler directly; their pass configs are registered with the graph
// by the host, per §4.K.
//
// Grounded on vgpu.System's Pipelines/PipelineMap pattern (a slice for
// ordered iteration plus a name index for lookup), generalized here to
// a render-order slice kept sorted by Layer.Order instead of
// declaration order.
package view

import (
	"log/slog"

	"github.com/cogentforge/vkr/base/ordmap"
	"github.com/cogentforge/vkr/handle"
	"github.com/cogentforge/vkr/material"
	"github.com/cogentforge/vkr/math32"
	"github.com/cogentforge/vkr/pipeline"
	"github.com/cogentforge/vkr/rgraph"
)

// PassConfig names a render pass this layer contributes and the
// resource names it targets, per spec.md §3.6 "pass_configs".
type PassConfig struct {
	PassName     string
	ColorTargets []string
	DepthTarget  string
}

// Callbacks are the lifecycle hooks of spec.md §3.6: on_create runs
// once at registration, on_attach each time the layer becomes active
// against the current graph, on_resize on viewport changes,
// on_render once per frame in order, on_detach/on_destroy at teardown.
type Callbacks struct {
	OnCreate  func(l *Layer)
	OnAttach  func(l *Layer)
	OnResize  func(l *Layer, width, height uint32)
	OnRender  func(ctx *RenderContext, l *Layer)
	OnDetach  func(l *Layer)
	OnDestroy func(l *Layer)
}

// Layer is the §3.6 Layer entity.
type Layer struct {
	id         handle.Handle
	Name       string
	Order      int
	Width      uint32
	Height     uint32

	ViewMatrix       math32.Matrix4
	ProjectionMatrix math32.Matrix4

	PassConfigs []PassConfig
	Callbacks   Callbacks
	UserData    any

	attached bool
}

// Handle returns the layer's stable handle.
func (l *Layer) Handle() handle.Handle { return l.id }

// RenderContext is what on_render receives: access to the renderer
// frontend (pipelines, materials, the compiled graph for the current
// frame) plus the layer's own stored user data, per spec.md §4.K.
type RenderContext struct {
	Graph      *rgraph.Graph
	Pipelines  *pipeline.Registry
	Materials  *material.Registry
	FrameIndex uint64
	ImageIndex uint32
	DeltaTime  float32
}

// Config is the input to RegisterLayer: everything a caller supplies
// up front about a new layer.
type Config struct {
	Name             string
	Order            int
	Width, Height    uint32
	ViewMatrix       math32.Matrix4
	ProjectionMatrix math32.Matrix4
	PassConfigs      []PassConfig
	Callbacks        Callbacks
	UserData         any
}

// System is the §4.K view layer registry. Layers are kept in an
// ordmap.Map from name to handle: Order gives render-order iteration
// (insertion-sorted on register, same technique rgraph's scheduler
// uses to keep its ready set sorted) and Map gives ByName lookup,
// mirroring vgpu.System's Pipelines/PipelineMap split.
type System struct {
	slots  handle.Table[*Layer]
	layers *ordmap.Map[string, handle.Handle]
}

// New returns an empty view system.
func New() *System {
	return &System{layers: ordmap.New[string, handle.Handle]()}
}

// RegisterLayer creates a layer from cfg, runs on_create then
// on_attach, and inserts it into the render-order list at the
// position its Order implies. Returns the new layer's handle.
func (s *System) RegisterLayer(cfg Config) handle.Handle {
	l := &Layer{
		Name:             cfg.Name,
		Order:            cfg.Order,
		Width:            cfg.Width,
		Height:           cfg.Height,
		ViewMatrix:       cfg.ViewMatrix,
		ProjectionMatrix: cfg.ProjectionMatrix,
		PassConfigs:      cfg.PassConfigs,
		Callbacks:        cfg.Callbacks,
		UserData:         cfg.UserData,
	}
	h := s.slots.Alloc(l)
	l.id = h

	pos := 0
	for pos < s.layers.Len() {
		other, _ := s.slots.Get(s.layers.ValueByIndex(pos))
		if other.Order > l.Order {
			break
		}
		pos++
	}
	s.layers.InsertAtIndex(pos, cfg.Name, h)

	if l.Callbacks.OnCreate != nil {
		l.Callbacks.OnCreate(l)
	}
	if l.Callbacks.OnAttach != nil {
		l.Callbacks.OnAttach(l)
	}
	l.attached = true
	return h
}

// ByName returns the layer registered under name, if any.
func (s *System) ByName(name string) (*Layer, bool) {
	h, ok := s.layers.ValueByKeyTry(name)
	if !ok {
		return nil, false
	}
	return s.slots.Get(h)
}

// Unregister runs on_detach then on_destroy for the layer at h and
// removes it from the system. Unregistering an unknown handle is a
// silent no-op, consistent with the registries' tolerant-release
// stance elsewhere in this codebase.
func (s *System) Unregister(h handle.Handle) {
	l, ok := s.slots.Get(h)
	if !ok {
		return
	}
	if l.attached && l.Callbacks.OnDetach != nil {
		l.Callbacks.OnDetach(l)
	}
	if l.Callbacks.OnDestroy != nil {
		l.Callbacks.OnDestroy(l)
	}
	s.slots.Free(h)
	s.layers.DeleteKey(l.Name)
}

// Resize calls on_resize on every registered layer and updates its
// stored extent, in render order.
func (s *System) Resize(width, height uint32) {
	for i := 0; i < s.layers.Len(); i++ {
		l, _ := s.slots.Get(s.layers.ValueByIndex(i))
		l.Width, l.Height = width, height
		if l.Callbacks.OnResize != nil {
			l.Callbacks.OnResize(l, width, height)
		}
	}
}

// Render calls on_render for every layer in ascending Order, per
// spec.md §4.K. A layer with no on_render is skipped silently — it may
// exist purely to hold pass configs the host wires directly.
func (s *System) Render(ctx *RenderContext) {
	for i := 0; i < s.layers.Len(); i++ {
		l, _ := s.slots.Get(s.layers.ValueByIndex(i))
		if l.Callbacks.OnRender != nil {
			l.Callbacks.OnRender(ctx, l)
		}
	}
}

// Len reports the number of registered layers.
func (s *System) Len() int { return s.layers.Len() }

// OrderedNames returns layer names in render order, for tests and
// diagnostics.
func (s *System) OrderedNames() []string {
	names := make([]string, 0, s.layers.Len())
	for i := 0; i < s.layers.Len(); i++ {
		names = append(names, s.layers.KeyByIndex(i))
	}
	return names
}

// Destroy tears down every registered layer in render order, calling
// on_detach then on_destroy, then empties the system.
func (s *System) Destroy() {
	handles := make([]handle.Handle, s.layers.Len())
	for i := range handles {
		handles[i] = s.layers.ValueByIndex(i)
	}
	for _, h := range handles {
		s.Unregister(h)
	}
	if s.layers.Len() != 0 {
		slog.Warn("view: layers remained after Destroy", "count", s.layers.Len())
	}
}
