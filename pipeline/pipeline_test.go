// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"testing"

	"github.com/cogentforge/vkr/handle"
	"github.com/stretchr/testify/require"
)

type stubShader struct{ used string }

func (s *stubShader) Use(name string) bool                             { s.used = name; return true }
func (s *stubShader) UniformSet(name string, v any) error              { return nil }
func (s *stubShader) SamplerSet(name string, tex handle.Handle) error   { return nil }
func (s *stubShader) ApplyGlobal() bool                                { return true }
func (s *stubShader) ApplyInstance() bool                              { return true }
func (s *stubShader) BindInstance(localStateID uint64)                 {}

func TestCreateAndBindPipeline(t *testing.T) {
	sh := &stubShader{}
	r := New(sh)
	h, err := r.CreateGraphicsPipeline(GraphicsPipelineDescription{ShaderName: "world", Domain: DomainWorld}, "shader.default.world")
	require.NoError(t, err)
	require.Equal(t, 1, r.RefCount("shader.default.world"))

	require.NoError(t, r.BindPipeline(h))
	require.True(t, r.State().PipelineBound)
	require.Equal(t, 1, r.State().FramePipelineChanges)

	require.NoError(t, r.BindPipeline(h))
	require.Equal(t, 1, r.State().FrameRedundantBindsAvoided)
}

func TestAcquireReleaseRefCountBalance(t *testing.T) {
	r := New(nil)
	h, err := r.CreateGraphicsPipeline(GraphicsPipelineDescription{Domain: DomainUI}, "ui.panel")
	require.NoError(t, err)
	_ = h

	for i := 0; i < 3; i++ {
		_, err := r.AcquireByName("ui.panel", true)
		require.NoError(t, err)
	}
	require.Equal(t, 4, r.RefCount("ui.panel"))

	for i := 0; i < 4; i++ {
		r.Release("ui.panel")
	}
	require.Equal(t, 0, r.RefCount("ui.panel"))

	// a further release does not underflow.
	r.Release("ui.panel")
}

func TestAcquireUnknownNameFails(t *testing.T) {
	r := New(nil)
	_, err := r.AcquireByName("missing", true)
	require.Error(t, err)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, KindResourceNotLoaded, pe.Kind)
}

func TestAliasPipelineNameSharesRefCount(t *testing.T) {
	r := New(nil)
	h, err := r.CreateGraphicsPipeline(GraphicsPipelineDescription{Domain: DomainWorld}, "shader.world")
	require.NoError(t, err)
	require.NoError(t, r.AliasPipelineName(h, "shader.default.world"))

	_, err = r.AcquireByName("shader.default.world", true)
	require.NoError(t, err)
	require.Equal(t, 2, r.RefCount("shader.world"))
	require.Equal(t, 2, r.RefCount("shader.default.world"))
}
