// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rgraph implements the render graph of spec.md §3.5/§4.F-I:
// a resource arena, a pass builder DSL, a compiler that schedules,
// culls, aliases, and barriers passes, and a per-frame executor.
// rgraph stays backend-agnostic: it drives only the opaque
// backend.Device/Texture/DynamicBuffer interfaces, per spec.md §1's
// framing of the Vulkan backend proper as an external collaborator.
// Grounded on vgpu/renderframe.go's per-swapchain-image framebuffer
// bookkeeping (the model for PER_IMAGE aliasing), vgpu/membuff.go's
// buffer-type dispatch tables (the model for usage/alias tables), and
// the gapid framegraph.go attachment/load-store-op naming convention.
package rgraph

import (
	"fmt"

	"github.com/cogentforge/vkr/backend"
	"github.com/cogentforge/vkr/handle"
	"github.com/cogentforge/vkr/pipeline"
)

// Error carries spec.md §6.6's error-kind taxonomy for this package.
type Error struct {
	Kind Kind
	Msg  string
}

type Kind int

const (
	KindNone Kind = iota
	KindInvalidParameter
	KindOutOfMemory
	KindResourceNotLoaded
	KindBackendError
)

func (e *Error) Error() string { return fmt.Sprintf("rgraph: %s", e.Msg) }
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	return ok && te.Kind == e.Kind
}

// ResourceFlags is a bitmask subset of {TRANSIENT, PERSISTENT,
// EXTERNAL, PER_IMAGE, RESIZABLE, FORCE_ARRAY}.
type ResourceFlags uint32

const (
	FlagTransient ResourceFlags = 1 << iota
	FlagPersistent
	FlagExternal
	FlagPerImage
	FlagResizable
	FlagForceArray
)

func (f ResourceFlags) Has(bit ResourceFlags) bool { return f&bit != 0 }

// PassType is one of GRAPHICS, COMPUTE, TRANSFER.
type PassType int

const (
	PassGraphics PassType = iota
	PassCompute
	PassTransfer
)

// PassFlags is a bitmask of pass-level modifiers.
type PassFlags uint32

const (
	PassFlagNone     PassFlags = 0
	PassFlagDisabled PassFlags = 1 << iota
	PassFlagNoCull
)

// AccessKind names how a pass touches a resource use.
type AccessKind int

const (
	AccessColorAttachment AccessKind = iota
	AccessDepthAttachment
	AccessShaderRead
	AccessTransferSrc
	AccessTransferDst
	AccessBufferRead
	AccessBufferWrite
)

// LoadOp / StoreOp are the standard attachment load/store op set.
type LoadOp int

const (
	LoadLoad LoadOp = iota
	LoadClear
	LoadDontCare
)

type StoreOp int

const (
	StoreStore StoreOp = iota
	StoreDontCare
)

// ImageSlice selects a mip/layer range of an image for an attachment use.
type ImageSlice struct {
	Mip        uint32
	BaseLayer  uint32
	LayerCount uint32
}

// ClearValue is a float4 clear color or a depth/stencil clear pair.
type ClearValue struct {
	Color        [4]float32
	Depth        float32
	Stencil      uint32
	IsDepthClear bool
}

// ImageDesc mirrors backend.ImageDesc with the extra extent-mode field
// the JSON loader resolves before handing the graph a concrete size.
type ImageDesc struct {
	Width, Height uint32
	Format        string
	Usage         uint32
	Samples       uint32
	Layers        uint32
	Mips          uint32
	Type          string
}

// ImageResource is the §3.5 image resource entity.
type ImageResource struct {
	Name        string
	Desc        ImageDesc
	Flags       ResourceFlags
	ImportH     []handle.Handle // populated for EXTERNAL resources; one per image index
	layout      []backend.ImageLayout
	access      []AccessKind
	physical    []handle.Handle // one per image index once allocated; empty until compile
	backendTex  []backend.Texture
	firstPass   int
	lastPass    int
}

// BufferDesc mirrors backend.BufferDesc.
type BufferDesc struct {
	Size  uint64
	Usage uint32
}

// BufferResource is the §3.5 buffer resource entity.
type BufferResource struct {
	Name      string
	Desc      BufferDesc
	Flags     ResourceFlags
	ImportH   handle.Handle
	access    []AccessKind
	physical  handle.Handle
	firstPass int
	lastPass  int
}

// AttachmentUse is the §3.5 attachment-use entity.
type AttachmentUse struct {
	ImageHandle handle.Handle
	Slice       ImageSlice
	LoadOp      LoadOp
	StoreOp     StoreOp
	Clear       ClearValue
	ReadOnly    bool
}

// ImageUse is a non-attachment image read/write declaration.
type ImageUse struct {
	ImageHandle handle.Handle
	Access      AccessKind
}

// BufferUse is a buffer read/write declaration.
type BufferUse struct {
	BufferHandle handle.Handle
	Access       AccessKind
}

// ExecuteFunc is the pass callback signature §4.I drives.
type ExecuteFunc func(ctx *PassContext, userData any)

// Pass is the §3.5 pass entity.
type Pass struct {
	Name             string
	Type             PassType
	Flags            PassFlags
	Domain           pipeline.Domain
	ColorAttachments []AttachmentUse
	DepthAttachment  *AttachmentUse
	ReadOnlyDepth    bool
	ImageReads       []ImageUse
	ImageWrites      []ImageUse
	BufferReads      []BufferUse
	BufferWrites     []BufferUse
	Execute          ExecuteFunc
	UserData         any
	ExecuteName      string
}

// ExecutorEntry is one executor-registry record.
type ExecutorEntry struct {
	Callback ExecuteFunc
	UserData any
}

// FrameInfo is the §3.5 per-frame input to BeginFrame.
type FrameInfo struct {
	FrameIndex          uint64
	ImageIndex          uint32
	DeltaTime           float32
	WindowW, WindowH    uint32
	ViewportW, ViewportH uint32
	EditorEnabled       bool
	SwapchainFormat     string
	SwapchainDepthFormat string
	ShadowDepthFormat   string
	ShadowMapSize       uint32
	ShadowCascadeCount  uint32
}

// Barrier is one precomputed transition for a compiled edge.
type Barrier struct {
	ImageHandle  handle.Handle
	SrcLayout    backend.ImageLayout
	DstLayout    backend.ImageLayout
	IsBuffer     bool
	BufferHandle handle.Handle
}

// PassTiming is one recorded CPU (and, one frame late, GPU) timing.
type PassTiming struct {
	PassName string
	CPUNanos int64
	GPUNanos int64
	HasGPU   bool
}

// PassContext is passed to each pass's Execute callback.
type PassContext struct {
	Graph         *Graph
	PassDesc      *Pass
	PassIndex     int
	Device        backend.Device
	RenderTarget  *RenderTarget
	FrameIndex    uint64
	ImageIndex    uint32
	DeltaTime     float32
}

// RenderTarget bundles the image views used as attachments for one
// graphics pass instance, per the GLOSSARY definition.
type RenderTarget struct {
	Color []handle.Handle
	Depth handle.Handle
	Width, Height uint32
}
