// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkbackend

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/cogentforge/vkr/backend"
)

// BeginRenderPass builds a VkRenderPass and a matching VkFramebuffer
// over rt's attachments and records vkCmdBeginRenderPass against the
// primary command buffer, grounded on the AttachmentDescription/
// SubpassDescription/RenderPassCreateInfo and FramebufferCreateInfo
// shape common to vulkan-go-family tutorials' render pass setup.
// Unlike a production renderer, which caches these objects keyed by
// attachment format/ops/extent (no teacher or pack file in this
// corpus shows a complete, working cache to ground one on), this
// rendition builds and tears the pair down every call: rgraph only
// ever has one graphics pass open against the command buffer at a
// time, so the per-call cost is one pass's worth of passes, not one
// per frame.
func (d *Device) BeginRenderPass(rt backend.RenderTargetDesc) error {
	var attachments []vk.AttachmentDescription
	var views []vk.ImageView
	var clears []vk.ClearValue
	var colorRefs []vk.AttachmentReference

	for _, c := range rt.Color {
		tex, ok := d.textures.Get(c.ImageHandle)
		if !ok {
			return fmt.Errorf("vkbackend: BeginRenderPass: unknown color image handle")
		}
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         vulkanFormat(tex.desc.Format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vkLoadOp(c.Load),
			StoreOp:        vkStoreOp(c.Store),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
		})
		colorRefs = append(colorRefs, vk.AttachmentReference{
			Attachment: uint32(len(attachments) - 1),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
		views = append(views, tex.view)
		clears = append(clears, vk.NewClearValue([]float32{c.Clear[0], c.Clear[1], c.Clear[2], c.Clear[3]}))
	}

	var depthRef *vk.AttachmentReference
	if rt.Depth != nil {
		tex, ok := d.textures.Get(rt.Depth.ImageHandle)
		if !ok {
			return fmt.Errorf("vkbackend: BeginRenderPass: unknown depth image handle")
		}
		finalLayout := vk.ImageLayoutDepthStencilAttachmentOptimal
		if rt.Depth.ReadOnly {
			finalLayout = vk.ImageLayoutDepthStencilReadOnlyOptimal
		}
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         vulkanFormat(tex.desc.Format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vkLoadOp(rt.Depth.Load),
			StoreOp:        vkStoreOp(rt.Depth.Store),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  finalLayout,
			FinalLayout:    finalLayout,
		})
		ref := vk.AttachmentReference{Attachment: uint32(len(attachments) - 1), Layout: finalLayout}
		depthRef = &ref
		views = append(views, tex.view)
		clears = append(clears, vk.NewClearDepthStencil(rt.Depth.ClearDepth, 0))
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorRefs)),
		PColorAttachments:       colorRefs,
		PDepthStencilAttachment: depthRef,
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}

	var pass vk.RenderPass
	ret := vk.CreateRenderPass(d.Device, &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}, nil, &pass)
	if vkFailed(ret) {
		return fmt.Errorf("vkbackend: CreateRenderPass failed: %d", ret)
	}

	var fb vk.Framebuffer
	ret = vk.CreateFramebuffer(d.Device, &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           rt.Width,
		Height:          rt.Height,
		Layers:          1,
	}, nil, &fb)
	if vkFailed(ret) {
		vk.DestroyRenderPass(d.Device, pass, nil)
		return fmt.Errorf("vkbackend: CreateFramebuffer failed: %d", ret)
	}

	vk.CmdBeginRenderPass(d.CmdBuf, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: rt.Width, Height: rt.Height},
		},
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}, vk.SubpassContentsInline)

	d.curRenderPass, d.curFramebuffer = pass, fb
	return nil
}

// EndRenderPass closes the render pass instance opened by
// BeginRenderPass and tears down the render pass/framebuffer pair it
// created, since this rendition keeps no cache across calls.
func (d *Device) EndRenderPass() {
	vk.CmdEndRenderPass(d.CmdBuf)
	if d.curFramebuffer != vk.NullFramebuffer {
		vk.DestroyFramebuffer(d.Device, d.curFramebuffer, nil)
		d.curFramebuffer = vk.NullFramebuffer
	}
	if d.curRenderPass != vk.NullRenderPass {
		vk.DestroyRenderPass(d.Device, d.curRenderPass, nil)
		d.curRenderPass = vk.NullRenderPass
	}
}

func vkLoadOp(op backend.AttachmentLoadOp) vk.AttachmentLoadOp {
	switch op {
	case backend.AttachmentClear:
		return vk.AttachmentLoadOpClear
	case backend.AttachmentDontCare:
		return vk.AttachmentLoadOpDontCare
	default:
		return vk.AttachmentLoadOpLoad
	}
}

func vkStoreOp(op backend.AttachmentStoreOp) vk.AttachmentStoreOp {
	if op == backend.AttachmentStoreDontCare {
		return vk.AttachmentStoreOpDontCare
	}
	return vk.AttachmentStoreOpStore
}
