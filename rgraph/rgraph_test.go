// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rgraph

import (
	"testing"

	"github.com/cogentforge/vkr/backend"
	"github.com/stretchr/testify/require"
)

func newTestGraph() (*Graph, *backend.FakeDevice) {
	dev := backend.NewFakeDevice()
	return New(dev, 2), dev
}

func TestSoloPresentClearsAndEndsInPresentLayout(t *testing.T) {
	g, _ := newTestGraph()
	present := g.CreateImage("present", ImageDesc{Width: 800, Height: 600, Format: "swapchain"}, FlagPerImage)

	var ran int
	g.AddPass(PassGraphics, "clear").
		AddColorAttachment(AttachmentUse{
			ImageHandle: present,
			LoadOp:      LoadClear,
			StoreOp:     StoreStore,
			Clear:       ClearValue{Color: [4]float32{0.1, 0.2, 0.3, 1.0}},
		}).
		SetExecute(func(ctx *PassContext, userData any) { ran++ }, nil)

	g.SetPresentImage(present)

	require.NoError(t, g.Compile())
	require.NoError(t, g.Execute(0))

	require.Equal(t, 1, ran)
	timings := g.GetPassTimings()
	require.Len(t, timings, 1)
	require.Equal(t, "clear", timings[0].PassName)

	layout, ok := g.PresentImageLayout()
	require.True(t, ok)
	require.Equal(t, "PRESENT", layout)
}

func TestDepthPrepassThenMainOrderAndBarrier(t *testing.T) {
	g, _ := newTestGraph()
	color := g.CreateImage("color", ImageDesc{Width: 800, Height: 600}, FlagPerImage)
	depth := g.CreateImage("depth", ImageDesc{Width: 800, Height: 600, Format: "d32"}, 0)

	g.AddPass(PassGraphics, "main").
		AddColorAttachment(AttachmentUse{ImageHandle: color, LoadOp: LoadClear, StoreOp: StoreStore}).
		SetDepthAttachment(AttachmentUse{ImageHandle: depth, LoadOp: LoadLoad, StoreOp: StoreStore, ReadOnly: true}).
		SetExecute(func(ctx *PassContext, userData any) {}, nil)

	g.AddPass(PassGraphics, "prepass").
		SetDepthAttachment(AttachmentUse{ImageHandle: depth, LoadOp: LoadClear, StoreOp: StoreStore, ReadOnly: false}).
		SetExecute(func(ctx *PassContext, userData any) {}, nil)

	g.SetPresentImage(color)

	require.NoError(t, g.Compile())
	require.Equal(t, 2, g.ScheduleLen())
	require.Equal(t, "prepass", g.ScheduledPassName(0))
	require.Equal(t, "main", g.ScheduledPassName(1))

	mainBarriers := g.BarriersAt(1)
	require.NotEmpty(t, mainBarriers)
	depthBarriers := 0
	for _, b := range mainBarriers {
		if b.ImageHandle == depth {
			depthBarriers++
			require.Equal(t, "DEPTH_READ_ONLY", layoutName(b.DstLayout))
		}
	}
	require.Equal(t, 1, depthBarriers, "depth must get exactly one barrier into main, not a contradictory second one")
}

func TestExecuteIssuesBarriersAndRenderPasses(t *testing.T) {
	g, dev := newTestGraph()
	color := g.CreateImage("color", ImageDesc{Width: 800, Height: 600}, FlagPerImage)
	depth := g.CreateImage("depth", ImageDesc{Width: 800, Height: 600, Format: "d32"}, 0)

	g.AddPass(PassGraphics, "main").
		AddColorAttachment(AttachmentUse{ImageHandle: color, LoadOp: LoadClear, StoreOp: StoreStore}).
		SetDepthAttachment(AttachmentUse{ImageHandle: depth, LoadOp: LoadLoad, StoreOp: StoreStore, ReadOnly: true}).
		SetExecute(func(ctx *PassContext, userData any) {}, nil)

	g.AddPass(PassGraphics, "prepass").
		SetDepthAttachment(AttachmentUse{ImageHandle: depth, LoadOp: LoadClear, StoreOp: StoreStore, ReadOnly: false}).
		SetExecute(func(ctx *PassContext, userData any) {}, nil)

	g.SetPresentImage(color)

	require.NoError(t, g.Compile())
	require.NoError(t, g.Execute(0))

	require.NotEmpty(t, dev.BarrierCalls, "compiled barriers must reach the device, not be discarded")
	require.Equal(t, 0, dev.RenderPassDepth, "every BeginRenderPass must be matched by an EndRenderPass")
	require.Len(t, dev.RenderPasses, 2, "both graphics passes must open a render pass instance")
	require.NotNil(t, dev.RenderPasses[0].Depth, "prepass writes depth and must bind it as an attachment")
}

func TestTransientAliasingKeepsPeakAtTwo(t *testing.T) {
	g, _ := newTestGraph()
	present := g.CreateImage("present", ImageDesc{Width: 64, Height: 64}, FlagPerImage)
	a := g.CreateImage("a", ImageDesc{Width: 64, Height: 64}, FlagTransient)
	b := g.CreateImage("b", ImageDesc{Width: 64, Height: 64}, FlagTransient)
	c := g.CreateImage("c", ImageDesc{Width: 64, Height: 64}, FlagTransient)

	g.AddPass(PassGraphics, "write-a").
		AddColorAttachment(AttachmentUse{ImageHandle: a}).
		SetExecute(func(ctx *PassContext, userData any) {}, nil)
	g.AddPass(PassGraphics, "write-b").
		ReadImageUse(ImageUse{ImageHandle: a, Access: AccessShaderRead}).
		AddColorAttachment(AttachmentUse{ImageHandle: b}).
		SetExecute(func(ctx *PassContext, userData any) {}, nil)
	g.AddPass(PassGraphics, "write-c").
		ReadImageUse(ImageUse{ImageHandle: b, Access: AccessShaderRead}).
		AddColorAttachment(AttachmentUse{ImageHandle: c}).
		SetExecute(func(ctx *PassContext, userData any) {}, nil)
	g.AddPass(PassGraphics, "present").
		ReadImageUse(ImageUse{ImageHandle: c, Access: AccessShaderRead}).
		AddColorAttachment(AttachmentUse{ImageHandle: present}).
		SetExecute(func(ctx *PassContext, userData any) {}, nil)

	g.SetPresentImage(present)

	require.NoError(t, g.Compile())
	require.LessOrEqual(t, g.PeakLiveImages(), 2+1) // +1 for the non-transient present image
}

func TestScheduleDeterminism(t *testing.T) {
	build := func() *Graph {
		g, _ := newTestGraph()
		x := g.CreateImage("x", ImageDesc{}, FlagPerImage)
		g.AddPass(PassGraphics, "p1").AddColorAttachment(AttachmentUse{ImageHandle: x}).
			SetExecute(func(ctx *PassContext, userData any) {}, nil)
		g.AddPass(PassGraphics, "p2").ReadImageUse(ImageUse{ImageHandle: x, Access: AccessShaderRead}).
			SetFlags(PassFlagNoCull).
			SetExecute(func(ctx *PassContext, userData any) {}, nil)
		g.SetPresentImage(x)
		require.NoError(t, g.Compile())
		return g
	}
	g1 := build()
	g2 := build()
	require.Equal(t, g1.ScheduledPassName(0), g2.ScheduledPassName(0))
	require.Equal(t, g1.ScheduledPassName(1), g2.ScheduledPassName(1))
}

func TestCycleDetectionFailsCompile(t *testing.T) {
	g, _ := newTestGraph()
	x := g.CreateImage("x", ImageDesc{}, 0)
	y := g.CreateImage("y", ImageDesc{}, 0)

	g.AddPass(PassGraphics, "a").
		ReadImageUse(ImageUse{ImageHandle: y, Access: AccessShaderRead}).
		AddColorAttachment(AttachmentUse{ImageHandle: x}).
		SetExecute(func(ctx *PassContext, userData any) {}, nil)
	g.AddPass(PassGraphics, "b").
		ReadImageUse(ImageUse{ImageHandle: x, Access: AccessShaderRead}).
		AddColorAttachment(AttachmentUse{ImageHandle: y}).
		SetExecute(func(ctx *PassContext, userData any) {}, nil)

	err := g.Compile()
	require.Error(t, err)
	require.False(t, g.IsCompiled())
}

func TestCullCorrectnessAndNoCull(t *testing.T) {
	g, _ := newTestGraph()
	present := g.CreateImage("present", ImageDesc{}, FlagPerImage)
	orphan := g.CreateImage("orphan", ImageDesc{}, 0)

	g.AddPass(PassGraphics, "present-pass").
		AddColorAttachment(AttachmentUse{ImageHandle: present}).
		SetExecute(func(ctx *PassContext, userData any) {}, nil)
	orphanIdx := len(g.passes)
	g.AddPass(PassGraphics, "orphan-pass").
		AddColorAttachment(AttachmentUse{ImageHandle: orphan}).
		SetExecute(func(ctx *PassContext, userData any) {}, nil)
	g.SetPresentImage(present)

	require.NoError(t, g.Compile())
	require.True(t, g.IsCulled(orphanIdx))
	require.Equal(t, 1, g.ScheduleLen())

	// rebuild with NO_CULL on the orphan pass.
	g2, _ := newTestGraph()
	present2 := g2.CreateImage("present", ImageDesc{}, FlagPerImage)
	orphan2 := g2.CreateImage("orphan", ImageDesc{}, 0)
	g2.AddPass(PassGraphics, "present-pass").
		AddColorAttachment(AttachmentUse{ImageHandle: present2}).
		SetExecute(func(ctx *PassContext, userData any) {}, nil)
	g2.AddPass(PassGraphics, "orphan-pass").
		AddColorAttachment(AttachmentUse{ImageHandle: orphan2}).
		SetFlags(PassFlagNoCull).
		SetExecute(func(ctx *PassContext, userData any) {}, nil)
	g2.SetPresentImage(present2)

	require.NoError(t, g2.Compile())
	require.Equal(t, 2, g2.ScheduleLen())
}
