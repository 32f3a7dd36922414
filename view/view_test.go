// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package view

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayersRenderInAscendingOrder(t *testing.T) {
	s := New()
	var rendered []string

	s.RegisterLayer(Config{
		Name: "ui", Order: 100,
		Callbacks: Callbacks{OnRender: func(ctx *RenderContext, l *Layer) { rendered = append(rendered, l.Name) }},
	})
	s.RegisterLayer(Config{
		Name: "world", Order: 0,
		Callbacks: Callbacks{OnRender: func(ctx *RenderContext, l *Layer) { rendered = append(rendered, l.Name) }},
	})
	s.RegisterLayer(Config{
		Name: "shadow", Order: -10,
		Callbacks: Callbacks{OnRender: func(ctx *RenderContext, l *Layer) { rendered = append(rendered, l.Name) }},
	})

	require.Equal(t, []string{"shadow", "world", "ui"}, s.OrderedNames())

	s.Render(&RenderContext{})
	require.Equal(t, []string{"shadow", "world", "ui"}, rendered)
}

func TestLifecycleCallbacksFireInSequence(t *testing.T) {
	s := New()
	var events []string
	h := s.RegisterLayer(Config{
		Name: "world",
		Callbacks: Callbacks{
			OnCreate:  func(l *Layer) { events = append(events, "create") },
			OnAttach:  func(l *Layer) { events = append(events, "attach") },
			OnResize:  func(l *Layer, w, ht uint32) { events = append(events, "resize") },
			OnDetach:  func(l *Layer) { events = append(events, "detach") },
			OnDestroy: func(l *Layer) { events = append(events, "destroy") },
		},
	})

	s.Resize(800, 600)
	s.Unregister(h)

	require.Equal(t, []string{"create", "attach", "resize", "detach", "destroy"}, events)
	require.Equal(t, 0, s.Len())
}

func TestByNameLookupAndMissing(t *testing.T) {
	s := New()
	s.RegisterLayer(Config{Name: "ui", Order: 1})

	l, ok := s.ByName("ui")
	require.True(t, ok)
	require.Equal(t, "ui", l.Name)

	_, ok = s.ByName("nonexistent")
	require.False(t, ok)
}

func TestResizeUpdatesStoredExtent(t *testing.T) {
	s := New()
	h := s.RegisterLayer(Config{Name: "world", Width: 100, Height: 100})
	s.Resize(1920, 1080)

	l, ok := s.ByName("world")
	require.True(t, ok)
	require.Equal(t, uint32(1920), l.Width)
	require.Equal(t, uint32(1080), l.Height)
	require.Equal(t, h, l.Handle())
}

func TestDestroyTearsDownAllLayersInOrder(t *testing.T) {
	s := New()
	var destroyed []string
	s.RegisterLayer(Config{Name: "a", Order: 0,
		Callbacks: Callbacks{OnDestroy: func(l *Layer) { destroyed = append(destroyed, l.Name) }}})
	s.RegisterLayer(Config{Name: "b", Order: 1,
		Callbacks: Callbacks{OnDestroy: func(l *Layer) { destroyed = append(destroyed, l.Name) }}})

	s.Destroy()
	require.Equal(t, []string{"a", "b"}, destroyed)
	require.Equal(t, 0, s.Len())
}
