// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkbackend

import (
	vk "github.com/goki/vulkan"

	"github.com/cogentforge/vkr/backend"
)

// Barrier issues one vkCmdPipelineBarrier covering every requested
// image transition, grounded on the ImageMemoryBarrier/
// CmdPipelineBarrier shape common to vulkan-go-family bindings (see
// the hal-vulkan command encoder's TransitionTextures for the same
// construct-then-submit sequence). Stage masks are kept at
// ALL_COMMANDS: rgraph's compiler tracks only the layout a resource
// must be in for a pass, not which shader stages touch it, so a
// tighter stage mask isn't available to compute here without widening
// rgraph's own bookkeeping.
func (d *Device) Barrier(barriers []backend.ImageBarrier) {
	if len(barriers) == 0 {
		return
	}
	vkBarriers := make([]vk.ImageMemoryBarrier, 0, len(barriers))
	for _, b := range barriers {
		tex, ok := d.textures.Get(b.ImageHandle)
		if !ok {
			continue
		}
		vkBarriers = append(vkBarriers, vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vkAccessMaskFor(b.SrcLayout),
			DstAccessMask:       vkAccessMaskFor(b.DstLayout),
			OldLayout:           vkImageLayout(b.SrcLayout),
			NewLayout:           vkImageLayout(b.DstLayout),
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               tex.image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: aspectMaskFor(b.DstLayout),
				LevelCount: max1(tex.desc.Mips),
				LayerCount: max1(tex.desc.Layers),
			},
		})
	}
	if len(vkBarriers) == 0 {
		return
	}
	vk.CmdPipelineBarrier(d.CmdBuf,
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		0,
		0, nil,
		0, nil,
		uint32(len(vkBarriers)), vkBarriers,
	)
}

func vkImageLayout(l backend.ImageLayout) vk.ImageLayout {
	switch l {
	case backend.LayoutColorAttachment:
		return vk.ImageLayoutColorAttachmentOptimal
	case backend.LayoutDepthAttachmentOptimal:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case backend.LayoutDepthReadOnly:
		return vk.ImageLayoutDepthStencilReadOnlyOptimal
	case backend.LayoutShaderReadOnly:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case backend.LayoutTransferSrc:
		return vk.ImageLayoutTransferSrcOptimal
	case backend.LayoutTransferDst:
		return vk.ImageLayoutTransferDstOptimal
	case backend.LayoutPresent:
		return vk.ImageLayoutPresentSrc
	default:
		return vk.ImageLayoutUndefined
	}
}

func vkAccessMaskFor(l backend.ImageLayout) vk.AccessFlags {
	switch l {
	case backend.LayoutColorAttachment:
		return vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessColorAttachmentReadBit)
	case backend.LayoutDepthAttachmentOptimal:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit | vk.AccessDepthStencilAttachmentReadBit)
	case backend.LayoutDepthReadOnly:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessShaderReadBit)
	case backend.LayoutShaderReadOnly:
		return vk.AccessFlags(vk.AccessShaderReadBit)
	case backend.LayoutTransferSrc:
		return vk.AccessFlags(vk.AccessTransferReadBit)
	case backend.LayoutTransferDst:
		return vk.AccessFlags(vk.AccessTransferWriteBit)
	default:
		return 0
	}
}

func aspectMaskFor(l backend.ImageLayout) vk.ImageAspectFlags {
	switch l {
	case backend.LayoutDepthAttachmentOptimal, backend.LayoutDepthReadOnly:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	default:
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
}
