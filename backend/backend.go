// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package backend names the opaque, backend-supplied interfaces
// spec.md §6.1/§6.2/§6.3 describe as "consumed, not specified": a
// texture/buffer backend, a shader system, and an event bus. rgraph,
// pipeline, and material depend only on these interfaces, never on a
// concrete GPU API, per spec.md §1's framing of the Vulkan backend
// proper as out of scope. vkbackend supplies the real implementation;
// the Fake* types in fake.go supply an in-memory one for tests.
package backend

import "github.com/cogentforge/vkr/handle"

// ImageLayout names a Vulkan-style image layout a barrier transitions
// an image resource into.
type ImageLayout int

const (
	LayoutUndefined ImageLayout = iota
	LayoutColorAttachment
	LayoutDepthAttachmentOptimal
	LayoutDepthReadOnly
	LayoutShaderReadOnly
	LayoutTransferSrc
	LayoutTransferDst
	LayoutPresent
)

// ImageDesc describes a backend image resource to be created.
type ImageDesc struct {
	Width, Height uint32
	Format        string
	Usage         uint32
	Samples       uint32
	Layers        uint32
	Mips          uint32
	Type          string // "2d", "cube", ...
}

// BufferDesc describes a backend buffer resource to be created.
type BufferDesc struct {
	Size  uint64
	Usage uint32
}

// Texture is the opaque handle-producing operations §6.1 names for
// textures: create/destroy/resize/write.
type Texture interface {
	Resize(width, height uint32) error
	Write(data []byte) error
	WriteRegion(data []byte, x, y, w, h uint32) error
	Destroy()
}

// DynamicBuffer is the opaque vertex/index dynamic buffer contract of
// §6.1: update/destroy. Binding and indexed draw submission go through
// Device.BindVertexBuffer/BindIndexBuffer/DrawIndexed.
type DynamicBuffer interface {
	Update(data []byte) error
	Destroy()
}

// ImageBarrier is one compiled layout transition Device.Barrier must
// issue before the pass that depends on it runs. rgraph.Barrier holds
// the same information keyed by rgraph's own handle.Handle space;
// rgraph translates each one into an ImageBarrier at Execute time
// since this package cannot import rgraph (rgraph already imports
// backend) to take rgraph.Barrier directly.
type ImageBarrier struct {
	ImageHandle handle.Handle
	SrcLayout   ImageLayout
	DstLayout   ImageLayout
}

// AttachmentLoadOp/AttachmentStoreOp mirror the standard Vulkan
// attachment load/store op set BeginRenderPass's attachment
// descriptions need.
type AttachmentLoadOp int

const (
	AttachmentLoad AttachmentLoadOp = iota
	AttachmentClear
	AttachmentDontCare
)

type AttachmentStoreOp int

const (
	AttachmentStore AttachmentStoreOp = iota
	AttachmentStoreDontCare
)

// ColorAttachmentDesc/DepthAttachmentDesc describe one render-target
// attachment resolved to a backend-level image handle.
type ColorAttachmentDesc struct {
	ImageHandle handle.Handle
	Load        AttachmentLoadOp
	Store       AttachmentStoreOp
	Clear       [4]float32
}

type DepthAttachmentDesc struct {
	ImageHandle handle.Handle
	Load        AttachmentLoadOp
	Store       AttachmentStoreOp
	ClearDepth  float32
	ReadOnly    bool
}

// RenderTargetDesc is rgraph.RenderTarget plus the per-attachment
// load/store/clear state, resolved down to what BeginRenderPass needs
// to open a render pass instance over a set of physical images.
type RenderTargetDesc struct {
	Color         []ColorAttachmentDesc
	Depth         *DepthAttachmentDesc
	Width, Height uint32
}

// Device is the backend entry point: it creates images, textures, and
// dynamic buffers, issues the barriers and render-pass begin/end calls
// the render graph's executor drives around each pass, and exposes
// draw submission plus the wait_idle synchronization point §6.1 lists.
type Device interface {
	TextureCreate(desc ImageDesc) (Texture, handle.Handle, error)
	VertexBufferCreateDynamic(desc BufferDesc) (DynamicBuffer, handle.Handle, error)
	IndexBufferCreateDynamic(desc BufferDesc) (DynamicBuffer, handle.Handle, error)
	BindVertexBuffer(h handle.Handle)
	BindIndexBuffer(h handle.Handle)
	DrawIndexed(count, instanceCount, firstIndex, vertexOffset, firstInstance uint32)
	Barrier(barriers []ImageBarrier)
	BeginRenderPass(rt RenderTargetDesc) error
	EndRenderPass()
	WaitIdle() error
}

// Shader is the §6.2 shader system contract the pipeline/material
// packages drive per bound pipeline.
type Shader interface {
	Use(name string) bool
	UniformSet(name string, value any) error
	SamplerSet(name string, tex handle.Handle) error
	ApplyGlobal() bool
	ApplyInstance() bool
	BindInstance(localStateID uint64)
}

// EventType names the bus event kinds §6.3 lists; the set is open —
// callers may define further values above eventTypeReserved.
type EventType int

const (
	EventLoadWorldMeshes EventType = iota
	eventTypeReserved
)

// Event is one published message on the Bus.
type Event struct {
	Type    EventType
	Payload any
}

// Bus is the §6.3 publish/subscribe event bus layers use to trigger
// asynchronous asset loads; loaded results are observed on the main
// thread only once a "loaded" state flag is set (spec.md §5).
type Bus interface {
	Subscribe(t EventType, fn func(Event)) (unsubscribe func())
	Publish(e Event)
}
