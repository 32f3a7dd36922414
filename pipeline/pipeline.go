// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline implements the pipeline registry of spec.md
// §3.3/§4.D: create/name-lookup/ref-count/bind/release, per-domain
// lists, and per-instance descriptor state, grounded on
// vgpu/system.go's AddPipeline/NewPipeline/PipelineMap/SetVals shape
// and vgpu/vphong/sets.go's descriptor-set-number enum idiom (reused
// here as Domain-scoped set numbering).
package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/cogentforge/vkr/backend"
	"github.com/cogentforge/vkr/base/ordmap"
	"github.com/cogentforge/vkr/handle"
)

// Domain is the coarse pipeline-domain tag of the GLOSSARY: world,
// world_transparent, UI, shadow, post.
type Domain int

const (
	DomainWorld Domain = iota
	DomainWorldTransparent
	DomainUI
	DomainShadow
	DomainPost
)

// Error is the small sentinel error type carrying spec.md §6.6's
// error-kind taxonomy for this package.
type Error struct {
	Kind Kind
	Msg  string
}

type Kind int

const (
	KindNone Kind = iota
	KindInvalidParameter
	KindOutOfMemory
	KindResourceNotLoaded
	KindBackendError
)

func (e *Error) Error() string { return fmt.Sprintf("pipeline: %s", e.Msg) }

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	return ok && te.Kind == e.Kind
}

// VertexAttribute describes one vertex input binding.
type VertexAttribute struct {
	Name   string
	Format string
	Offset uint32
}

// GraphicsPipelineDescription is the explicit description
// create_graphics_pipeline builds a backend pipeline from.
type GraphicsPipelineDescription struct {
	ShaderName       string
	Domain           Domain
	VertexAttributes []VertexAttribute
	DepthTest        bool
	DepthWrite       bool
	Blending         bool
	CullMode         string
	Topology         string
}

// ShaderConfig is the raw authored configuration
// create_from_shader_config lowers into a GraphicsPipelineDescription.
type ShaderConfig struct {
	ShaderName       string
	VertexAttributes []VertexAttribute
	DepthTest        bool
	DepthWrite       bool
	Blending         bool
	CullMode         string
	Topology         string
}

// Pipeline is one dense-array slot, indexed by handle.Id - 1.
type Pipeline struct {
	Name       string
	Domain     Domain
	Desc       GraphicsPipelineDescription
	shaderHand backend.Shader
}

type registryEntry struct {
	id          uint32
	generation  uint32
	refCount    int
	autoRelease bool
	domain      Domain
}

// State caches the per-frame bind-tracking fields §3.3 names.
type State struct {
	CurrentPipeline              handle.Handle
	CurrentDomain                Domain
	GlobalStateDirty             bool
	PipelineBound                bool
	FramePipelineChanges         int
	FrameRedundantBindsAvoided   int
}

// Registry is the pipeline registry of §3.3: a dense slot array, a
// name index kept in an ordmap.Map so aliasing and iteration never
// disturb registration order, per-domain lists, and bind state.
type Registry struct {
	slots    handle.Table[*Pipeline]
	byName   *ordmap.Map[string, *registryEntry]
	byDomain map[Domain][]handle.Handle
	shader   backend.Shader
	state    State
}

// New returns an empty registry driving the given shader system.
func New(shader backend.Shader) *Registry {
	return &Registry{
		byName:   ordmap.New[string, *registryEntry](),
		byDomain: make(map[Domain][]handle.Handle),
		shader:   shader,
	}
}

// CreateGraphicsPipeline allocates a slot, creates the backend
// pipeline, and sets ref_count = 1.
func (r *Registry) CreateGraphicsPipeline(desc GraphicsPipelineDescription, name string) (handle.Handle, error) {
	if name == "" {
		return handle.Invalid, &Error{Kind: KindInvalidParameter, Msg: "empty pipeline name"}
	}
	p := &Pipeline{Name: name, Domain: desc.Domain, Desc: desc, shaderHand: r.shader}
	h := r.slots.Alloc(p)
	r.byName.Add(name, &registryEntry{id: h.Id, generation: h.Generation, refCount: 1, autoRelease: true, domain: desc.Domain})
	r.byDomain[desc.Domain] = append(r.byDomain[desc.Domain], h)
	return h, nil
}

// CreateFromShaderConfig lowers config into a
// GraphicsPipelineDescription and calls CreateGraphicsPipeline.
func (r *Registry) CreateFromShaderConfig(config ShaderConfig, domain Domain, name string) (handle.Handle, error) {
	desc := GraphicsPipelineDescription{
		ShaderName:       config.ShaderName,
		Domain:           domain,
		VertexAttributes: config.VertexAttributes,
		DepthTest:        config.DepthTest,
		DepthWrite:       config.DepthWrite,
		Blending:         config.Blending,
		CullMode:         config.CullMode,
		Topology:         config.Topology,
	}
	return r.CreateGraphicsPipeline(desc, name)
}

// AcquireByName increments an existing entry's ref_count, or fails
// with RESOURCE_NOT_LOADED.
func (r *Registry) AcquireByName(name string, autoRelease bool) (handle.Handle, error) {
	e, ok := r.byName.ValueByKeyTry(name)
	if !ok {
		return handle.Invalid, &Error{Kind: KindResourceNotLoaded, Msg: "no pipeline named " + name}
	}
	e.refCount++
	e.autoRelease = autoRelease
	return handle.Handle{Id: e.id, Generation: e.generation}, nil
}

// AliasPipelineName inserts an additional name key pointing at the
// same id as h, per spec.md §4.D ("useful for shader.default.world
// aliases") and the Open Question decision in DESIGN.md: aliases share
// one entry's ref_count.
func (r *Registry) AliasPipelineName(h handle.Handle, alias string) error {
	for i := 0; i < r.byName.Len(); i++ {
		e := r.byName.ValueByIndex(i)
		if e.id == h.Id && e.generation == h.Generation {
			r.byName.Add(alias, e)
			return nil
		}
	}
	return &Error{Kind: KindResourceNotLoaded, Msg: "alias target handle not found"}
}

// Release decrements ref_count; at zero with auto_release it unloads
// the slot. Over-release logs a warning and stops at ref_count = 0.
func (r *Registry) Release(name string) {
	e, ok := r.byName.ValueByKeyTry(name)
	if !ok {
		return
	}
	if e.refCount == 0 {
		slog.Warn("pipeline: release called with ref_count already zero", "name", name)
		return
	}
	e.refCount--
	if e.refCount == 0 && e.autoRelease {
		r.destroySlot(handle.Handle{Id: e.id, Generation: e.generation})
	}
}

func (r *Registry) destroySlot(h handle.Handle) {
	r.slots.Free(h)
	var stale []string
	for i := 0; i < r.byName.Len(); i++ {
		if r.byName.ValueByIndex(i).id == h.Id {
			stale = append(stale, r.byName.KeyByIndex(i))
		}
	}
	for _, name := range stale {
		r.byName.DeleteKey(name)
	}
	if r.state.CurrentPipeline.Equal(h) {
		r.state.CurrentPipeline = handle.Invalid
		r.state.PipelineBound = false
	}
}

// BindPipeline binds h as current, or records a redundant-bind
// avoidance if it already is.
func (r *Registry) BindPipeline(h handle.Handle) error {
	p, ok := r.slots.Get(h)
	if !ok {
		return &Error{Kind: KindResourceNotLoaded, Msg: "bind of unknown pipeline handle"}
	}
	if r.state.CurrentPipeline.Equal(h) {
		r.state.FrameRedundantBindsAvoided++
		return nil
	}
	if r.shader != nil && !r.shader.Use(p.Name) {
		return &Error{Kind: KindBackendError, Msg: "backend rejected pipeline bind: " + p.Name}
	}
	r.state.CurrentPipeline = h
	r.state.CurrentDomain = p.Domain
	r.state.PipelineBound = true
	r.state.FramePipelineChanges++
	r.state.GlobalStateDirty = true
	return nil
}

// AcquireInstanceState allocates per-draw descriptor state for pipeline.
func (r *Registry) AcquireInstanceState(p handle.Handle) (uint64, error) {
	if _, ok := r.slots.Get(p); !ok {
		return 0, &Error{Kind: KindResourceNotLoaded, Msg: "instance state for unknown pipeline"}
	}
	return instanceCounter.add(), nil
}

// ReleaseInstanceState frees per-draw descriptor state. In this Go
// rendition instance state is a plain counter token (no backend
// descriptor pool to return), so release is a bookkeeping no-op kept
// for interface symmetry with acquire.
func (r *Registry) ReleaseInstanceState(p handle.Handle, local uint64) {}

// UpdateGlobalState writes per-pass globals if dirty.
func (r *Registry) UpdateGlobalState() bool {
	if !r.state.GlobalStateDirty {
		return false
	}
	if r.shader != nil {
		r.shader.ApplyGlobal()
	}
	r.state.GlobalStateDirty = false
	return true
}

// UpdateInstanceState writes per-instance uniforms/samplers.
func (r *Registry) UpdateInstanceState(localStateID uint64) bool {
	if r.shader == nil {
		return false
	}
	r.shader.BindInstance(localStateID)
	return r.shader.ApplyInstance()
}

// State returns the live bind-tracking state for inspection/reset.
func (r *Registry) State() *State { return &r.state }

// RefCount reports the current ref_count for name, or 0 if unknown.
func (r *Registry) RefCount(name string) int {
	if e, ok := r.byName.ValueByKeyTry(name); ok {
		return e.refCount
	}
	return 0
}

var instanceCounter counter

type counter struct{ n uint64 }

func (c *counter) add() uint64 { c.n++; return c.n }
