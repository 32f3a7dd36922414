// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkbackend

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/cogentforge/vkr/backend"
	"github.com/cogentforge/vkr/handle"
)

// Texture is a device image plus a linear host-visible staging buffer
// used to upload Write/WriteRegion calls, and a sampler/view pair for
// binding. Grounded on vgpu.Texture's Image+Sampler pairing, narrowed
// to what backend.Texture's interface needs.
type Texture struct {
	dev  *Device
	desc backend.ImageDesc
	self handle.Handle

	image   vk.Image
	memory  vk.DeviceMemory
	view    vk.ImageView
	sampler vk.Sampler

	staging     vk.Buffer
	stagingMem  vk.DeviceMemory
	stagingPtr  unsafe.Pointer
	stagingSize int
}

func newTexture(d *Device, desc backend.ImageDesc) (*Texture, error) {
	t := &Texture{dev: d, desc: desc}
	if err := t.allocImage(); err != nil {
		return nil, err
	}
	if err := t.allocStaging(); err != nil {
		return nil, err
	}
	if err := t.configSampler(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Texture) allocImage() error {
	var image vk.Image
	ret := vk.CreateImage(t.dev.Device, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent:    vk.Extent3D{Width: t.desc.Width, Height: t.desc.Height, Depth: 1},
		MipLevels: max1(t.desc.Mips),
		ArrayLayers: max1(t.desc.Layers),
		Format:    vulkanFormat(t.desc.Format),
		Tiling:    vk.ImageTilingOptimal,
		Usage: vk.ImageUsageFlags(vk.ImageUsageSampledBit) |
			vk.ImageUsageFlags(vk.ImageUsageTransferDstBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
		Samples:       vk.SampleCount1Bit,
	}, nil, &image)
	if vkFailed(ret) {
		return fmt.Errorf("vkbackend: CreateImage failed: %d", ret)
	}
	t.image = image

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(t.dev.Device, image, &req)
	req.Deref()
	idx, ok := findMemoryType(t.dev.MemProps, req.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	if !ok {
		return fmt.Errorf("vkbackend: no device-local memory type for texture")
	}
	var mem vk.DeviceMemory
	ret = vk.AllocateMemory(t.dev.Device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: idx,
	}, nil, &mem)
	if vkFailed(ret) {
		return fmt.Errorf("vkbackend: AllocateMemory (image) failed: %d", ret)
	}
	vk.BindImageMemory(t.dev.Device, image, mem, 0)
	t.memory = mem

	var view vk.ImageView
	ret = vk.CreateImageView(t.dev.Device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   vulkanFormat(t.desc.Format),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if vkFailed(ret) {
		return fmt.Errorf("vkbackend: CreateImageView failed: %d", ret)
	}
	t.view = view
	return nil
}

func (t *Texture) allocStaging() error {
	size := int(t.desc.Width) * int(t.desc.Height) * 4
	if size == 0 {
		return nil
	}
	var buf vk.Buffer
	ret := vk.CreateBuffer(t.dev.Device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buf)
	if vkFailed(ret) {
		return fmt.Errorf("vkbackend: CreateBuffer (staging) failed: %d", ret)
	}
	t.staging = buf

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(t.dev.Device, buf, &req)
	req.Deref()
	idx, ok := findMemoryType(t.dev.MemProps, req.MemoryTypeBits,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if !ok {
		return fmt.Errorf("vkbackend: no host-visible memory type for texture staging")
	}
	var mem vk.DeviceMemory
	ret = vk.AllocateMemory(t.dev.Device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: idx,
	}, nil, &mem)
	if vkFailed(ret) {
		return fmt.Errorf("vkbackend: AllocateMemory (staging) failed: %d", ret)
	}
	vk.BindBufferMemory(t.dev.Device, buf, mem, 0)
	t.stagingMem = mem
	t.stagingSize = size

	var ptr unsafe.Pointer
	vk.MapMemory(t.dev.Device, mem, 0, vk.DeviceSize(size), 0, &ptr)
	t.stagingPtr = ptr
	return nil
}

func (t *Texture) configSampler() error {
	var samp vk.Sampler
	ret := vk.CreateSampler(t.dev.Device, &vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		UnnormalizedCoordinates: vk.False,
	}, nil, &samp)
	if vkFailed(ret) {
		return fmt.Errorf("vkbackend: CreateSampler failed: %d", ret)
	}
	t.sampler = samp
	return nil
}

// Resize recreates the backing image at a new extent, leaving the
// sampler untouched. rgraph does not call it: a recompile reuses the
// physical images it already allocated.
func (t *Texture) Resize(width, height uint32) error {
	t.destroyImageOnly()
	t.desc.Width, t.desc.Height = width, height
	return t.allocImage()
}

// Write copies data into the staging buffer and issues a buffer-to-
// image copy for the whole extent.
func (t *Texture) Write(data []byte) error {
	return t.WriteRegion(data, 0, 0, t.desc.Width, t.desc.Height)
}

// WriteRegion copies data into the staging buffer at the region's
// offset and issues a buffer-to-image copy for just that rectangle.
func (t *Texture) WriteRegion(data []byte, x, y, w, h uint32) error {
	if t.stagingPtr == nil {
		return fmt.Errorf("vkbackend: texture has no staging buffer")
	}
	n := len(data)
	if n > t.stagingSize {
		n = t.stagingSize
	}
	dst := unsafe.Slice((*byte)(t.stagingPtr), t.stagingSize)
	copy(dst, data[:n])

	cmd := t.dev.CmdBuf
	vk.CmdCopyBufferToImage(cmd, t.staging, t.image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageOffset: vk.Offset3D{X: int32(x), Y: int32(y)},
		ImageExtent: vk.Extent3D{Width: w, Height: h, Depth: 1},
	}})
	return nil
}

func (t *Texture) destroyImageOnly() {
	if t.view != vk.NullImageView {
		vk.DestroyImageView(t.dev.Device, t.view, nil)
		t.view = vk.NullImageView
	}
	if t.image != vk.NullImage {
		vk.DestroyImage(t.dev.Device, t.image, nil)
		t.image = vk.NullImage
	}
	if t.memory != vk.NullDeviceMemory {
		vk.FreeMemory(t.dev.Device, t.memory, nil)
		t.memory = vk.NullDeviceMemory
	}
}

// Destroy releases the image, staging buffer, sampler, and view.
func (t *Texture) Destroy() {
	t.destroyImageOnly()
	if t.sampler != vk.NullSampler {
		vk.DestroySampler(t.dev.Device, t.sampler, nil)
		t.sampler = vk.NullSampler
	}
	if t.staging != vk.NullBuffer {
		vk.UnmapMemory(t.dev.Device, t.stagingMem)
		vk.DestroyBuffer(t.dev.Device, t.staging, nil)
		vk.FreeMemory(t.dev.Device, t.stagingMem, nil)
		t.staging = vk.NullBuffer
	}
	t.dev.textures.Free(t.self)
}

func max1(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	return v
}

// vulkanFormat maps the graph's named format strings onto Vulkan
// formats. Unrecognized names fall back to a broadly supported 8-bit
// sRGB format rather than failing image creation outright.
func vulkanFormat(name string) vk.Format {
	switch name {
	case "rgba8_unorm":
		return vk.FormatR8g8b8a8Unorm
	case "bgra8_unorm":
		return vk.FormatB8g8r8a8Unorm
	case "rgba16_sfloat":
		return vk.FormatR16g16b16a16Sfloat
	case "d32":
		return vk.FormatD32Sfloat
	case "d24s8":
		return vk.FormatD24UnormS8Uint
	default:
		return vk.FormatR8g8b8a8Srgb
	}
}
