// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package material implements the material system of spec.md
// §3.4/§4.E: named materials with Phong-like properties and four
// texture slots, global/instance/local uniform application, fallback
// resolution, and shadow cascade samplers, grounded on
// vgpu/vphong/sets.go's descriptor-set grouping and vgpu/texture.go's
// Sampler/Texture shape and map-based enum translation-table idiom.
package material

import (
	"fmt"
	"log/slog"

	"github.com/cogentforge/vkr/backend"
	"github.com/cogentforge/vkr/base/ordmap"
	"github.com/cogentforge/vkr/handle"
	"github.com/cogentforge/vkr/math32"
	"github.com/cogentforge/vkr/pipeline"
)

// ShadowCascadeCountMax is the fixed upper bound on cascade samplers.
const ShadowCascadeCountMax = 4

// TextureSlot is the fixed four-entry texture enum every material
// carries one of.
type TextureSlot int

const (
	SlotDiffuse TextureSlot = iota
	SlotNormal
	SlotSpecular
	SlotEmission
	slotCount
)

// Error mirrors pipeline.Error's sentinel-kind shape for this package.
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

func (e *Error) Error() string { return fmt.Sprintf("material: %s", e.Msg) }
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	return ok && te.Kind == e.Kind
}

// Phong holds the Phong-like shading properties every material carries.
type Phong struct {
	Diffuse   math32.Vector4
	Specular  math32.Vector4
	Emission  math32.Vector4
	Shininess float32
}

// TextureBinding is one of a material's four fixed texture entries.
type TextureBinding struct {
	Slot    TextureSlot
	Handle  handle.Handle
	Enabled bool
}

// Material is one dense-array slot.
type Material struct {
	Name       string
	PipelineID handle.Handle
	Phong      Phong
	Textures   [slotCount]TextureBinding
	ShaderName string
}

type registryEntry struct {
	id          uint32
	generation  uint32
	refCount    int
	autoRelease bool
}

// Defaults is the texture system's tag-specific fallback set: white
// albedo, flat normal, flat (black) specular, used whenever a material
// texture slot fails to resolve to a live 2D texture.
type Defaults struct {
	White       handle.Handle
	FlatNormal  handle.Handle
	FlatSpecular handle.Handle
}

// Registry is the material system of §3.4: a dense slot array with
// slot 0 reserved as the default material, a name index with the
// pipeline registry's ref-count/auto-release protocol, and a shadow
// cascade sampler array. byName is an ordmap.Map rather than a plain
// map for the same reason pipeline.Registry uses one: it gives
// deterministic, insertion-ordered iteration (diagnostics, future
// bulk-release sweeps) on top of the name lookup a plain map would
// already give.
type Registry struct {
	slots    handle.Table[*Material]
	byName   *ordmap.Map[string, *registryEntry]
	defaultH handle.Handle
	defaults Defaults
	shader   backend.Shader
	cascades [ShadowCascadeCountMax]TextureBinding
}

// New returns a registry with slot 0 populated via CreateDefault.
func New(shader backend.Shader, defaults Defaults) *Registry {
	r := &Registry{byName: ordmap.New[string, *registryEntry](), shader: shader, defaults: defaults}
	r.defaultH, _ = r.createInternal("material.default", Phong{
		Diffuse:   math32.Vector4{X: 1, Y: 1, Z: 1, W: 1},
		Specular:  math32.Vector4{X: 1, Y: 1, Z: 1, W: 1},
		Emission:  math32.Vector4{},
		Shininess: 8,
	}, defaults.White, defaults.FlatNormal, defaults.FlatSpecular)
	return r
}

func (r *Registry) createInternal(name string, phong Phong, diffuse, normal, specular handle.Handle) (handle.Handle, error) {
	m := &Material{Name: name, Phong: phong}
	m.Textures[SlotDiffuse] = TextureBinding{Slot: SlotDiffuse, Handle: diffuse, Enabled: diffuse.IsValid()}
	m.Textures[SlotNormal] = TextureBinding{Slot: SlotNormal, Handle: normal, Enabled: normal.IsValid()}
	m.Textures[SlotSpecular] = TextureBinding{Slot: SlotSpecular, Handle: specular, Enabled: specular.IsValid()}
	m.Textures[SlotEmission] = TextureBinding{Slot: SlotEmission}
	h := r.slots.Alloc(m)
	r.byName.Add(name, &registryEntry{id: h.Id, generation: h.Generation, refCount: 1, autoRelease: false})
	return h, nil
}

// DefaultHandle returns slot 0's handle; it can never be released.
func (r *Registry) DefaultHandle() handle.Handle { return r.defaultH }

// CreateColored creates a named material with the given diffuse color
// and the registry's default normal/specular textures.
func (r *Registry) CreateColored(name string, diffuse math32.Vector4) (handle.Handle, error) {
	if name == "" {
		return handle.Invalid, &Error{Kind: KindInvalidParameter, Msg: "empty material name"}
	}
	return r.createInternal(name, Phong{Diffuse: diffuse, Specular: math32.Vector4{X: 1, Y: 1, Z: 1, W: 1}, Shininess: 32},
		r.defaults.White, r.defaults.FlatNormal, r.defaults.FlatSpecular)
}

// Acquire increments ref_count for an existing entry, or fails with
// RESOURCE_NOT_LOADED and returns the default material handle.
func (r *Registry) Acquire(name string, autoRelease bool) (handle.Handle, error) {
	e, ok := r.byName.ValueByKeyTry(name)
	if !ok {
		return r.defaultH, &Error{Kind: KindResourceNotLoaded, Msg: "no material named " + name}
	}
	e.refCount++
	e.autoRelease = autoRelease
	return handle.Handle{Id: e.id, Generation: e.generation}, nil
}

// AddRef increments ref_count on name without changing auto_release.
func (r *Registry) AddRef(name string) {
	if e, ok := r.byName.ValueByKeyTry(name); ok {
		e.refCount++
	}
}

// Release decrements ref_count; slot 0 can never be released.
func (r *Registry) Release(name string) {
	if name == "material.default" {
		return
	}
	e, ok := r.byName.ValueByKeyTry(name)
	if !ok {
		return
	}
	if e.refCount == 0 {
		slog.Warn("material: release called with ref_count already zero", "name", name)
		return
	}
	e.refCount--
	if e.refCount == 0 && e.autoRelease {
		r.slots.Free(handle.Handle{Id: e.id, Generation: e.generation})
		r.byName.DeleteKey(name)
	}
}

// RefCount reports name's current ref_count, 0 if unknown.
func (r *Registry) RefCount(name string) int {
	if e, ok := r.byName.ValueByKeyTry(name); ok {
		return e.refCount
	}
	return 0
}

// GlobalState is the per-frame global uniform set apply_global writes.
type GlobalState struct {
	View       math32.Matrix4
	Projection math32.Matrix4
	Ambient    math32.Vector4
	ViewPos    math32.Vector3
	RenderMode int
}

// ApplyGlobal writes view/projection/render-mode for the currently
// bound pipeline, then flushes the global set. Ambient color and view
// position are scene lighting terms and are only written for world
// domains; DomainUI draws in screen space against an orthographic
// projection with no camera or ambient light to speak of, so those two
// uniforms are left at the shader's last-bound value instead of being
// overwritten with world-space data that domain has no use for.
func (r *Registry) ApplyGlobal(g GlobalState, domain pipeline.Domain) error {
	if r.shader == nil {
		return nil
	}
	r.shader.UniformSet("view", g.View)
	r.shader.UniformSet("projection", g.Projection)
	r.shader.UniformSet("render_mode", g.RenderMode)
	if domain != pipeline.DomainUI {
		r.shader.UniformSet("ambient_color", g.Ambient)
		r.shader.UniformSet("view_pos", g.ViewPos)
	}
	if !r.shader.ApplyGlobal() {
		return &Error{Kind: KindBackendError, Msg: "backend rejected apply_global"}
	}
	return nil
}

// TextureResolver resolves a texture handle to whether it is a live
// 2D texture; it is the texture system's liveness check, kept as a
// function value so material has no direct texture-package import.
type TextureResolver func(h handle.Handle) bool

// ApplyInstance resolves each texture to a live 2D texture (falling
// back to the registry default on failure), writes Phong uniforms and
// sampler bindings, computes the texture_flags bitmask (bit0 diffuse,
// bit1 specular, bit2 normal), and for world domains binds shadow
// cascade samplers.
func (r *Registry) ApplyInstance(mat handle.Handle, domain pipeline.Domain, resolve TextureResolver) (textureFlags uint32, err error) {
	m, ok := r.slots.Get(mat)
	if !ok {
		return 0, &Error{Kind: KindResourceNotLoaded, Msg: "apply_instance on unknown material"}
	}
	if r.shader == nil {
		return 0, nil
	}

	diffuseH := r.resolveOrDefault(m.Textures[SlotDiffuse], r.defaults.White, resolve)
	specularH := r.resolveOrDefault(m.Textures[SlotSpecular], r.defaults.FlatSpecular, resolve)
	normalH := r.resolveOrDefault(m.Textures[SlotNormal], r.defaults.FlatNormal, resolve)

	if diffuseH == m.Textures[SlotDiffuse].Handle && m.Textures[SlotDiffuse].Enabled {
		textureFlags |= 1 << 0
	}
	if specularH == m.Textures[SlotSpecular].Handle && m.Textures[SlotSpecular].Enabled {
		textureFlags |= 1 << 1
	}
	if normalH == m.Textures[SlotNormal].Handle && m.Textures[SlotNormal].Enabled {
		textureFlags |= 1 << 2
	}

	r.shader.UniformSet("diffuse_color", m.Phong.Diffuse)
	r.shader.UniformSet("specular_color", m.Phong.Specular)
	r.shader.UniformSet("emission_color", m.Phong.Emission)
	r.shader.UniformSet("shininess", m.Phong.Shininess)
	r.shader.UniformSet("texture_flags", textureFlags)
	r.shader.SamplerSet("diffuse_map", diffuseH)
	r.shader.SamplerSet("specular_map", specularH)
	r.shader.SamplerSet("normal_map", normalH)

	if domain == pipeline.DomainWorld || domain == pipeline.DomainWorldTransparent {
		for i, c := range r.cascades {
			h := c.Handle
			if !c.Enabled {
				h = r.defaults.White
			}
			r.shader.SamplerSet(fmt.Sprintf("shadow_map_%d", i), h)
		}
	}

	if !r.shader.ApplyInstance() {
		return textureFlags, &Error{Kind: KindBackendError, Msg: "backend rejected apply_instance"}
	}
	return textureFlags, nil
}

func (r *Registry) resolveOrDefault(b TextureBinding, fallback handle.Handle, resolve TextureResolver) handle.Handle {
	if b.Enabled && b.Handle.IsValid() && resolve != nil && resolve(b.Handle) {
		return b.Handle
	}
	return fallback
}

// LocalState is per-draw-instance data apply_local writes.
type LocalState struct {
	Model    math32.Matrix4
	ObjectID uint32
}

// ApplyLocal writes the model matrix and object_id uniforms.
func (r *Registry) ApplyLocal(local LocalState) {
	if r.shader == nil {
		return
	}
	r.shader.UniformSet("model", local.Model)
	r.shader.UniformSet("object_id", local.ObjectID)
}

// SetShadowMaps replaces the cached cascade samplers; count is
// clamped to ShadowCascadeCountMax.
func (r *Registry) SetShadowMaps(textures []handle.Handle, count int, enabled bool) {
	if count > ShadowCascadeCountMax {
		count = ShadowCascadeCountMax
	}
	for i := 0; i < ShadowCascadeCountMax; i++ {
		if i < count && i < len(textures) {
			r.cascades[i] = TextureBinding{Handle: textures[i], Enabled: enabled}
		} else {
			r.cascades[i] = TextureBinding{}
		}
	}
}
