// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vkbackend is the concrete backend.Device/Texture/
// DynamicBuffer adapter over github.com/goki/vulkan, the one real
// graphics backend this module ships (spec.md §1's Non-goals rule out
// a second, cross-API one). rgraph, pipeline, and material never
// import this package directly; they depend only on backend's
// interfaces, and a host (cmd/vkrdemo) wires a *vkbackend.Device in as
// the concrete backend.Device at startup.
//
// Grounded on vgpu/device.go's queue-discovery-then-device-creation
// shape and vgpu/membuff.go's host-visible persistently-mapped memory
// pattern, narrowed down from vgpu's general Vars/Values memory
// manager to exactly what backend.Device needs: textures and two
// dynamic (vertex/index) buffers.
package vkbackend

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/cogentforge/vkr/backend"
	"github.com/cogentforge/vkr/handle"
)

// Device wraps a Vulkan logical device, its graphics queue, and a
// single primary command buffer used to record bind/draw calls between
// rgraph pass executors. It implements backend.Device.
type Device struct {
	Instance vk.Instance
	GPU      vk.PhysicalDevice
	MemProps vk.PhysicalDeviceMemoryProperties

	Device     vk.Device
	QueueIndex uint32
	Queue      vk.Queue

	CmdPool vk.CommandPool
	CmdBuf  vk.CommandBuffer

	textures handle.Table[*Texture]
	buffers  handle.Table[*DynamicBuffer]

	boundVertex handle.Handle
	boundIndex  handle.Handle

	frameIndex uint64
	retireRing []retiredBuffer

	curRenderPass  vk.RenderPass
	curFramebuffer vk.Framebuffer
}

// New creates a logical device and graphics queue on gpu, and a
// command pool/buffer ready for per-frame recording.
func New(instance vk.Instance, gpu vk.PhysicalDevice) (*Device, error) {
	d := &Device{Instance: instance, GPU: gpu}
	vk.GetPhysicalDeviceMemoryProperties(gpu, &d.MemProps)
	d.MemProps.Deref()

	if err := d.findGraphicsQueue(); err != nil {
		return nil, err
	}
	if err := d.makeDevice(); err != nil {
		return nil, err
	}
	if err := d.makeCommandBuffer(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) findGraphicsQueue() error {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(d.GPU, &count, nil)
	if count == 0 {
		return errors.New("vkbackend: no queue families on gpu")
	}
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(d.GPU, &count, props)
	for i := uint32(0); i < count; i++ {
		props[i].Deref()
		if props[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			d.QueueIndex = i
			return nil
		}
	}
	return errors.New("vkbackend: no graphics-capable queue family found")
}

func (d *Device) makeDevice() error {
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: d.QueueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}
	feats := vk.PhysicalDeviceFeatures{SamplerAnisotropy: vk.True}

	var dev vk.Device
	ret := vk.CreateDevice(d.GPU, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: uint32(len(queueInfos)),
		PQueueCreateInfos:    queueInfos,
		PEnabledFeatures:     []vk.PhysicalDeviceFeatures{feats},
	}, nil, &dev)
	if vkFailed(ret) {
		return fmt.Errorf("vkbackend: CreateDevice failed: %d", ret)
	}
	d.Device = dev

	var queue vk.Queue
	vk.GetDeviceQueue(d.Device, d.QueueIndex, 0, &queue)
	d.Queue = queue
	return nil
}

func (d *Device) makeCommandBuffer() error {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(d.Device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.QueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &pool)
	if vkFailed(ret) {
		return fmt.Errorf("vkbackend: CreateCommandPool failed: %d", ret)
	}
	d.CmdPool = pool

	bufs := make([]vk.CommandBuffer, 1)
	ret = vk.AllocateCommandBuffers(d.Device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, bufs)
	if vkFailed(ret) {
		return fmt.Errorf("vkbackend: AllocateCommandBuffers failed: %d", ret)
	}
	d.CmdBuf = bufs[0]
	return nil
}

// TextureCreate allocates a device image plus sampler for desc and
// returns it bound to a fresh handle.
func (d *Device) TextureCreate(desc backend.ImageDesc) (backend.Texture, handle.Handle, error) {
	tex, err := newTexture(d, desc)
	if err != nil {
		return nil, handle.Invalid, err
	}
	h := d.textures.Alloc(tex)
	tex.self = h
	return tex, h, nil
}

// VertexBufferCreateDynamic allocates a host-visible, persistently
// mapped buffer for streamed vertex data.
func (d *Device) VertexBufferCreateDynamic(desc backend.BufferDesc) (backend.DynamicBuffer, handle.Handle, error) {
	return d.newDynamicBuffer(desc, vk.BufferUsageVertexBufferBit)
}

// IndexBufferCreateDynamic allocates a host-visible, persistently
// mapped buffer for streamed index data.
func (d *Device) IndexBufferCreateDynamic(desc backend.BufferDesc) (backend.DynamicBuffer, handle.Handle, error) {
	return d.newDynamicBuffer(desc, vk.BufferUsageIndexBufferBit)
}

func (d *Device) newDynamicBuffer(desc backend.BufferDesc, usage vk.BufferUsageFlagBits) (backend.DynamicBuffer, handle.Handle, error) {
	buf, err := newDynamicBuffer(d, desc, usage)
	if err != nil {
		return nil, handle.Invalid, err
	}
	h := d.buffers.Alloc(buf)
	buf.self = h
	return buf, h, nil
}

// BindVertexBuffer records a vkCmdBindVertexBuffers call against the
// primary command buffer for h.
func (d *Device) BindVertexBuffer(h handle.Handle) {
	buf, ok := d.buffers.Get(h)
	if !ok {
		return
	}
	offsets := []vk.DeviceSize{0}
	vk.CmdBindVertexBuffers(d.CmdBuf, 0, 1, []vk.Buffer{buf.buf}, offsets)
	d.boundVertex = h
}

// BindIndexBuffer records a vkCmdBindIndexBuffer call against the
// primary command buffer for h.
func (d *Device) BindIndexBuffer(h handle.Handle) {
	buf, ok := d.buffers.Get(h)
	if !ok {
		return
	}
	vk.CmdBindIndexBuffer(d.CmdBuf, buf.buf, 0, vk.IndexTypeUint32)
	d.boundIndex = h
}

// DrawIndexed records a vkCmdDrawIndexed call using the currently
// bound vertex/index buffers.
func (d *Device) DrawIndexed(count, instanceCount, firstIndex, vertexOffset, firstInstance uint32) {
	vk.CmdDrawIndexed(d.CmdBuf, count, instanceCount, firstIndex, int32(vertexOffset), firstInstance)
}

// WaitIdle blocks until all queued GPU work on this device completes.
func (d *Device) WaitIdle() error {
	ret := vk.DeviceWaitIdle(d.Device)
	if vkFailed(ret) {
		return fmt.Errorf("vkbackend: DeviceWaitIdle failed: %d", ret)
	}
	return nil
}

// Destroy tears down the command pool and logical device. Every
// texture and buffer still live is destroyed first so no Vulkan
// objects outlive their device.
func (d *Device) Destroy() {
	d.textures.Range(func(h handle.Handle) {
		if t, ok := d.textures.Get(h); ok {
			t.Destroy()
		}
	})
	d.buffers.Range(func(h handle.Handle) {
		if b, ok := d.buffers.Get(h); ok {
			b.Destroy()
		}
	})
	d.flushRetireRing(^uint64(0))
	if d.CmdPool != vk.NullCommandPool {
		vk.DestroyCommandPool(d.Device, d.CmdPool, nil)
	}
	if d.Device != nil {
		vk.DeviceWaitIdle(d.Device)
		vk.DestroyDevice(d.Device, nil)
		d.Device = nil
	}
}

func vkFailed(ret vk.Result) bool { return ret != vk.Success }

// findMemoryType mirrors vgpu's FindRequiredMemoryType: the first
// memory type index whose bit is set in typeBits and whose property
// flags are a superset of want.
func findMemoryType(props vk.PhysicalDeviceMemoryProperties, typeBits uint32, want vk.MemoryPropertyFlagBits) (uint32, bool) {
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		props.MemoryTypes[i].Deref()
		if props.MemoryTypes[i].PropertyFlags&vk.MemoryPropertyFlags(want) == vk.MemoryPropertyFlags(want) {
			return i, true
		}
	}
	return 0, false
}
