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

// DynamicBuffer is a single host-visible, persistently mapped Vulkan
// buffer: Update writes straight into the mapped pointer, with no
// staging/device-local copy, matching the streamed-every-frame nature
// of vertex/index data coming out of view layers. Grounded on
// vgpu.MemBuff's AllocHost/host-coherent mapping (narrowed from its
// host+device-local pair, since dynamic vertex/index data here is
// re-written every frame and never benefits from a device-local copy).
type DynamicBuffer struct {
	dev  *Device
	self handle.Handle

	buf   vk.Buffer
	mem   vk.DeviceMemory
	ptr   unsafe.Pointer
	size  int
	usage vk.BufferUsageFlagBits
}

func newDynamicBuffer(d *Device, desc backend.BufferDesc, usage vk.BufferUsageFlagBits) (*DynamicBuffer, error) {
	b := &DynamicBuffer{dev: d, usage: usage}
	if err := b.alloc(int(desc.Size), usage); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *DynamicBuffer) alloc(size int, usage vk.BufferUsageFlagBits) error {
	if size == 0 {
		return nil
	}
	var buf vk.Buffer
	ret := vk.CreateBuffer(b.dev.Device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buf)
	if vkFailed(ret) {
		return fmt.Errorf("vkbackend: CreateBuffer failed: %d", ret)
	}
	b.buf = buf

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(b.dev.Device, buf, &req)
	req.Deref()
	idx, ok := findMemoryType(b.dev.MemProps, req.MemoryTypeBits,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if !ok {
		return fmt.Errorf("vkbackend: no host-visible memory type for dynamic buffer")
	}
	var mem vk.DeviceMemory
	ret = vk.AllocateMemory(b.dev.Device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: idx,
	}, nil, &mem)
	if vkFailed(ret) {
		return fmt.Errorf("vkbackend: AllocateMemory failed: %d", ret)
	}
	vk.BindBufferMemory(b.dev.Device, buf, mem, 0)
	b.mem = mem
	b.size = size

	var ptr unsafe.Pointer
	vk.MapMemory(b.dev.Device, mem, 0, vk.DeviceSize(size), 0, &ptr)
	b.ptr = ptr
	return nil
}

// Update writes data into the mapped buffer, growing the underlying
// Vulkan buffer first if data no longer fits. A grow does not destroy
// the old buffer outright: it hands it to the device's retire ring
// (see retire.go), since a command buffer already recorded against it
// may still be in flight. Update always writes through the new,
// currently live buffer.
func (b *DynamicBuffer) Update(data []byte) error {
	if len(data) > b.size {
		oldBuf, oldMem := b.buf, b.mem
		if err := b.alloc(len(data), b.usage); err != nil {
			return err
		}
		if oldBuf != vk.NullBuffer {
			b.dev.retire(oldBuf, oldMem)
		}
	}
	if b.ptr == nil {
		return fmt.Errorf("vkbackend: dynamic buffer has no mapped memory")
	}
	dst := unsafe.Slice((*byte)(b.ptr), b.size)
	copy(dst, data)
	return nil
}

func (b *DynamicBuffer) destroy() {
	if b.buf == vk.NullBuffer {
		return
	}
	vk.UnmapMemory(b.dev.Device, b.mem)
	vk.DestroyBuffer(b.dev.Device, b.buf, nil)
	vk.FreeMemory(b.dev.Device, b.mem, nil)
	b.buf = vk.NullBuffer
	b.mem = vk.NullDeviceMemory
	b.ptr = nil
	b.size = 0
}

// Destroy releases the buffer and its memory.
func (b *DynamicBuffer) Destroy() {
	b.destroy()
	b.dev.buffers.Free(b.self)
}
