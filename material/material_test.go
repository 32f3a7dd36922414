// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package material

import (
	"testing"

	"github.com/cogentforge/vkr/handle"
	"github.com/cogentforge/vkr/math32"
	"github.com/cogentforge/vkr/pipeline"
	"github.com/stretchr/testify/require"
)

type stubShader struct {
	samplers map[string]handle.Handle
}

func newStubShader() *stubShader { return &stubShader{samplers: make(map[string]handle.Handle)} }

func (s *stubShader) Use(name string) bool               { return true }
func (s *stubShader) UniformSet(name string, v any) error { return nil }
func (s *stubShader) SamplerSet(name string, h handle.Handle) error {
	s.samplers[name] = h
	return nil
}
func (s *stubShader) ApplyGlobal() bool                { return true }
func (s *stubShader) ApplyInstance() bool               { return true }
func (s *stubShader) BindInstance(localStateID uint64) {}

func newTestRegistry() (*Registry, *stubShader, handle.Handle, handle.Handle, handle.Handle) {
	var tab handle.Table[struct{}]
	white := tab.Alloc(struct{}{})
	flatNormal := tab.Alloc(struct{}{})
	flatSpecular := tab.Alloc(struct{}{})
	sh := newStubShader()
	r := New(sh, Defaults{White: white, FlatNormal: flatNormal, FlatSpecular: flatSpecular})
	return r, sh, white, flatNormal, flatSpecular
}

func TestCreateDefaultOccupiesSlotZero(t *testing.T) {
	r, _, white, _, _ := newTestRegistry()
	d := r.DefaultHandle()
	require.True(t, d.IsValid())
	require.Equal(t, uint32(1), d.Id)
	mat, ok := r.slots.Get(d)
	require.True(t, ok)
	require.Equal(t, white, mat.Textures[SlotDiffuse].Handle)
}

func TestDefaultMaterialCannotBeReleased(t *testing.T) {
	r, _, _, _, _ := newTestRegistry()
	r.Release("material.default")
	require.True(t, r.DefaultHandle().IsValid())
	_, ok := r.slots.Get(r.DefaultHandle())
	require.True(t, ok)
}

func TestApplyInstanceFallbackOnStaleTexture(t *testing.T) {
	r, sh, white, flatNormal, flatSpecular := newTestRegistry()

	h, err := r.CreateColored("brick", math32.Vector4{X: 0.5, Y: 0.3, Z: 0.2, W: 1})
	require.NoError(t, err)

	var tab handle.Table[struct{}]
	tab.Alloc(struct{}{}) // occupies Id 1 so staleDiffuse cannot equal the white default {1,1}
	staleDiffuse := tab.Alloc(struct{}{})
	tab.Free(staleDiffuse) // now stale: generation mismatch on any future Get

	m := r.slots.MustGet(h)
	m.Textures[SlotDiffuse] = TextureBinding{Slot: SlotDiffuse, Handle: staleDiffuse, Enabled: true}
	m.Textures[SlotSpecular] = TextureBinding{Slot: SlotSpecular, Handle: flatSpecular, Enabled: true}
	m.Textures[SlotNormal] = TextureBinding{Slot: SlotNormal, Handle: flatNormal, Enabled: true}

	resolve := func(th handle.Handle) bool {
		_, ok := tab.Get(th)
		return ok
	}

	flags, err := r.ApplyInstance(h, pipeline.DomainWorld, resolve)
	require.NoError(t, err)
	require.Equal(t, uint32(0), flags&1)      // bit0 diffuse: fell back
	require.NotEqual(t, uint32(0), flags&2)   // bit1 specular: real
	require.NotEqual(t, uint32(0), flags&4)   // bit2 normal: real
	require.Equal(t, white, sh.samplers["diffuse_map"])
}

func TestSetShadowMapsClampsToMax(t *testing.T) {
	r, _, _, _, _ := newTestRegistry()
	var tab handle.Table[struct{}]
	hs := make([]handle.Handle, 6)
	for i := range hs {
		hs[i] = tab.Alloc(struct{}{})
	}
	r.SetShadowMaps(hs, 6, true)
	for i := 0; i < ShadowCascadeCountMax; i++ {
		require.True(t, r.cascades[i].Enabled)
	}
}

type recordingShader struct {
	stubShader
	written []string
}

func (s *recordingShader) UniformSet(name string, v any) error {
	s.written = append(s.written, name)
	return nil
}

func TestApplyGlobalSkipsAmbientAndViewPosForUI(t *testing.T) {
	sh := &recordingShader{stubShader: stubShader{samplers: make(map[string]handle.Handle)}}
	r := New(sh, Defaults{})

	require.NoError(t, r.ApplyGlobal(GlobalState{}, pipeline.DomainUI))
	require.Contains(t, sh.written, "view")
	require.Contains(t, sh.written, "projection")
	require.Contains(t, sh.written, "render_mode")
	require.NotContains(t, sh.written, "ambient_color")
	require.NotContains(t, sh.written, "view_pos")

	sh.written = nil
	require.NoError(t, r.ApplyGlobal(GlobalState{}, pipeline.DomainWorld))
	require.Contains(t, sh.written, "ambient_color")
	require.Contains(t, sh.written, "view_pos")
}

func TestAcquireUnknownReturnsDefault(t *testing.T) {
	r, _, _, _, _ := newTestRegistry()
	h, err := r.Acquire("missing", true)
	require.Error(t, err)
	require.Equal(t, r.DefaultHandle(), h)
}
