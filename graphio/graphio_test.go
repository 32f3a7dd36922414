// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graphio

import (
	"fmt"
	"testing"

	"github.com/cogentforge/vkr/backend"
	"github.com/cogentforge/vkr/rgraph"
	"github.com/stretchr/testify/require"
)

func newTestGraph() *rgraph.Graph {
	dev := backend.NewFakeDevice()
	return rgraph.New(dev, 2)
}

func literal(n int) *int { return &n }

// TestRepeatExpansionOverShadowCascadeCount is spec.md §8 scenario 5:
// a pass repeated over shadow_cascade_count with a per-cascade shadow
// map attachment must produce one pass (and one image) per cascade.
func TestRepeatExpansionOverShadowCascadeCount(t *testing.T) {
	doc := Document{
		Version: 1,
		Name:    "shadow_test",
		Resources: []ResourceDoc{
			{
				Name:   "shadow_map",
				Type:   "image",
				Repeat: Repeat{CountSource: "shadow_cascade_count"},
				Flags:  []string{"persistent"},
				Image: &ImageDoc{
					Format: "d32",
					Usage:  []string{"depth_attachment", "sampled"},
					Extent: ExtentDoc{Mode: "square", SizeSource: "shadow_map_size"},
				},
			},
		},
		Passes: []PassDoc{
			{
				Name:   "shadow_pass",
				Type:   "GRAPHICS",
				Flags:  []string{"NO_CULL"}, // nothing is presented or exported, so the passes would otherwise be culled
				Domain: "SHADOW",
				Repeat: Repeat{CountSource: "shadow_cascade_count"},
				Attachments: AttachmentsDoc{
					Depth: &AttachmentDoc{Image: "shadow_map", LoadOp: "clear", StoreOp: "store"},
				},
				Execute: "shadow_execute",
			},
		},
	}

	g := newTestGraph()
	ran := 0
	g.RegisterExecutor("shadow_execute", func(ctx *rgraph.PassContext, userData any) { ran++ }, nil)

	frame := rgraph.FrameInfo{ShadowCascadeCount: 4, ShadowMapSize: 1024}
	require.NoError(t, Build(doc, frame, g))

	require.Equal(t, 4, g.PassCount())
	for i := 0; i < 4; i++ {
		require.Equal(t, fmt.Sprintf("shadow_pass[%d]", i), g.PassNameAt(i))
	}

	require.NoError(t, g.Compile())
	require.NoError(t, g.Execute(0))
	require.Equal(t, 4, ran)
}

func TestConditionEditorDisabledSkipsResourceAndPass(t *testing.T) {
	doc := Document{
		Resources: []ResourceDoc{
			{Name: "color", Type: "image", Image: &ImageDoc{Extent: ExtentDoc{Mode: "fixed", Width: 64, Height: 64}}},
			{Name: "debug_overlay", Type: "image", Condition: ConditionEditorEnabled,
				Image: &ImageDoc{Extent: ExtentDoc{Mode: "fixed", Width: 64, Height: 64}}},
		},
		Passes: []PassDoc{
			{
				Name:        "main",
				Type:        "GRAPHICS",
				Attachments: AttachmentsDoc{Colors: []AttachmentDoc{{Image: "color", LoadOp: "clear", StoreOp: "store"}}},
				Execute:     "noop",
			},
			{
				Name:      "overlay",
				Type:      "GRAPHICS",
				Condition: ConditionEditorEnabled,
				Attachments: AttachmentsDoc{
					Colors: []AttachmentDoc{{Image: "debug_overlay", LoadOp: "load", StoreOp: "store"}},
				},
				Execute: "noop",
			},
		},
	}

	g := newTestGraph()
	g.RegisterExecutor("noop", func(ctx *rgraph.PassContext, userData any) {}, nil)

	require.NoError(t, Build(doc, rgraph.FrameInfo{EditorEnabled: false}, g))
	require.Equal(t, 1, g.PassCount())
	require.Equal(t, "main", g.PassNameAt(0))
}

func TestLiteralRepeatDoesNotConsultFrameInfo(t *testing.T) {
	doc := Document{
		Resources: []ResourceDoc{
			{Name: "cube_face", Type: "image", Repeat: Repeat{Literal: literal(6)},
				Image: &ImageDoc{Extent: ExtentDoc{Mode: "fixed", Width: 32, Height: 32}}},
		},
	}
	g := newTestGraph()
	require.NoError(t, Build(doc, rgraph.FrameInfo{ShadowCascadeCount: 999}, g))
	require.Equal(t, 6, g.Stats().LiveImages)
}

func TestUnknownCountSourceFails(t *testing.T) {
	doc := Document{
		Resources: []ResourceDoc{
			{Name: "x", Type: "image", Repeat: Repeat{CountSource: "nonsense_token"},
				Image: &ImageDoc{Extent: ExtentDoc{Mode: "fixed", Width: 1, Height: 1}}},
		},
	}
	g := newTestGraph()
	require.Error(t, Build(doc, rgraph.FrameInfo{}, g))
}

func TestSwapchainFormatResolvedFromFrameInfo(t *testing.T) {
	doc := Document{
		Resources: []ResourceDoc{
			{Name: "present", Type: "image", Flags: []string{"per_image"},
				Image: &ImageDoc{Format: "swapchain", Extent: ExtentDoc{Mode: "window"}}},
		},
		Passes: []PassDoc{
			{
				Name:        "clear",
				Type:        "GRAPHICS",
				Attachments: AttachmentsDoc{Colors: []AttachmentDoc{{Image: "present", LoadOp: "clear", StoreOp: "store"}}},
				Execute:     "noop",
			},
		},
		Outputs: OutputsDoc{Present: "present"},
	}
	g := newTestGraph()
	g.RegisterExecutor("noop", func(ctx *rgraph.PassContext, userData any) {}, nil)
	frame := rgraph.FrameInfo{SwapchainFormat: "bgra8_unorm", WindowW: 1920, WindowH: 1080}
	require.NoError(t, Build(doc, frame, g))
	require.NoError(t, g.Compile())
}
