// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rgraph

import (
	"time"

	"github.com/cogentforge/vkr/backend"
)

// BeginFrame records frame as the current frame info. A window or
// viewport size change from the previous call invalidates any
// existing compile of a graph holding RESIZABLE images and forces the
// caller to recompile before Execute. The recompile does not recreate
// physical images allocated by an earlier Compile; they keep their size.
func (g *Graph) BeginFrame(frame FrameInfo) {
	resized := g.frame.WindowW != frame.WindowW || g.frame.WindowH != frame.WindowH ||
		g.frame.ViewportW != frame.ViewportW || g.frame.ViewportH != frame.ViewportH
	g.frame = frame
	if resized && g.hasResizable() {
		g.compiled = false
	}
}

func (g *Graph) hasResizable() bool {
	found := false
	g.sortedImageIDsEach(func(r *ImageResource) {
		if r.Flags.Has(FlagResizable) {
			found = true
		}
	})
	return found
}

func (g *Graph) sortedImageIDsEach(fn func(r *ImageResource)) {
	for _, h := range g.sortedImageIDs() {
		if r := g.images.MustGet(h); r != nil {
			fn(r)
		}
	}
}

// IsCompiled reports whether Compile has succeeded since the last
// invalidating change.
func (g *Graph) IsCompiled() bool { return g.compiled }

// Execute drives the per-frame loop of spec.md §4.I for the given
// image index: it is a fatal error (returns an error) before compile
// or after invalidation. If the present target cannot be acquired
// (image_index < 0), execute is a no-op and returns successfully, per
// spec.md §7's "execute skipped" failure mode.
func (g *Graph) Execute(imageIndex int) error {
	if !g.compiled {
		return &Error{Kind: KindInvalidParameter, Msg: "execute called before compile or after invalidation"}
	}
	if imageIndex < 0 {
		return nil // window minimized / present target unavailable: no-op success
	}

	g.timings = g.timings[:0]

	for pos, idx := range g.schedule {
		p := g.passes[idx]
		if p.Flags&PassFlagDisabled != 0 {
			continue
		}

		tBegin := time.Now()

		// barriers for this pass, specialized with the current image index
		// (the layout targets were already computed per-image-agnostically
		// since every PER_IMAGE resource shares the same access pattern
		// across image indices).
		if g.device != nil {
			if bs := toImageBarriers(g.barriers[pos]); len(bs) > 0 {
				g.device.Barrier(bs)
			}
		}

		var rt *RenderTarget
		if p.Type == PassGraphics {
			targets := g.targets[pos]
			if imageIndex < len(targets) {
				rt = targets[imageIndex]
			}
		}

		inRenderPass := false
		if p.Type == PassGraphics && rt != nil && g.device != nil {
			if err := g.device.BeginRenderPass(renderTargetDesc(p, rt)); err != nil {
				return &Error{Kind: KindBackendError, Msg: "begin render pass failed for " + p.Name}
			}
			inRenderPass = true
		}

		ctx := &PassContext{
			Graph:        g,
			PassDesc:     p,
			PassIndex:    idx,
			Device:       g.device,
			RenderTarget: rt,
			FrameIndex:   g.frame.FrameIndex,
			ImageIndex:   uint32(imageIndex),
			DeltaTime:    g.frame.DeltaTime,
		}

		if p.Execute != nil {
			p.Execute(ctx, p.UserData)
		}

		if inRenderPass {
			g.device.EndRenderPass()
		}

		g.timings = append(g.timings, PassTiming{
			PassName: p.Name,
			CPUNanos: time.Since(tBegin).Nanoseconds(),
		})
	}

	// transition exported/present images to their declared final layout.
	if g.device != nil {
		if bs := toImageBarriers(g.finalBarriers); len(bs) > 0 {
			g.device.Barrier(bs)
		}
	}

	return nil
}

// toImageBarriers drops buffer barriers (computeBarriers does not yet
// populate IsBuffer/BufferHandle for any edge) and translates the rest
// into the backend-level form Device.Barrier takes.
func toImageBarriers(bs []Barrier) []backend.ImageBarrier {
	out := make([]backend.ImageBarrier, 0, len(bs))
	for _, b := range bs {
		if b.IsBuffer {
			continue
		}
		out = append(out, backend.ImageBarrier{
			ImageHandle: b.ImageHandle,
			SrcLayout:   b.SrcLayout,
			DstLayout:   b.DstLayout,
		})
	}
	return out
}

func toBackendLoadOp(op LoadOp) backend.AttachmentLoadOp {
	switch op {
	case LoadClear:
		return backend.AttachmentClear
	case LoadDontCare:
		return backend.AttachmentDontCare
	default:
		return backend.AttachmentLoad
	}
}

func toBackendStoreOp(op StoreOp) backend.AttachmentStoreOp {
	if op == StoreDontCare {
		return backend.AttachmentStoreDontCare
	}
	return backend.AttachmentStore
}

// renderTargetDesc resolves p's attachment declarations against rt's
// already-resolved physical handles into the backend-level form
// BeginRenderPass takes. rt.Color is built in attachment declaration
// order by buildRenderTargets, so the indices line up with
// p.ColorAttachments.
func renderTargetDesc(p *Pass, rt *RenderTarget) backend.RenderTargetDesc {
	desc := backend.RenderTargetDesc{Width: rt.Width, Height: rt.Height}
	for i, a := range p.ColorAttachments {
		if i >= len(rt.Color) || !rt.Color[i].IsValid() {
			continue
		}
		desc.Color = append(desc.Color, backend.ColorAttachmentDesc{
			ImageHandle: rt.Color[i],
			Load:        toBackendLoadOp(a.LoadOp),
			Store:       toBackendStoreOp(a.StoreOp),
			Clear:       a.Clear.Color,
		})
	}
	if p.DepthAttachment != nil && rt.Depth.IsValid() {
		desc.Depth = &backend.DepthAttachmentDesc{
			ImageHandle: rt.Depth,
			Load:        toBackendLoadOp(p.DepthAttachment.LoadOp),
			Store:       toBackendStoreOp(p.DepthAttachment.StoreOp),
			ClearDepth:  p.DepthAttachment.Clear.Depth,
			ReadOnly:    p.ReadOnlyDepth,
		}
	}
	return desc
}

// EndFrame closes the frame. It does no work: the graph holds no
// per-frame allocations between Execute and the next BeginFrame.
func (g *Graph) EndFrame() {
	// nothing retained across frames at the allocator level in this
	// rendition: scopes are opened/closed per compile/execute call by
	// callers that need transient CPU-side bookkeeping, per alloc's
	// BeginScope/EndScope contract.
}

// GetPassTimings returns the timings recorded by the most recent
// Execute call; valid until the next BeginFrame.
func (g *Graph) GetPassTimings() []PassTiming { return g.timings }

// BarriersAt returns the precomputed barrier set for the pass at
// scheduled position pos.
func (g *Graph) BarriersAt(pos int) []Barrier { return g.barriers[pos] }

// ScheduleLen reports how many passes survived culling and scheduling.
func (g *Graph) ScheduleLen() int { return len(g.schedule) }

// PassCount reports the number of passes declared so far, independent
// of culling or scheduling — the order loaders such as graphio build
// them in.
func (g *Graph) PassCount() int { return len(g.passes) }

// PassNameAt returns the declared (not scheduled) name of the pass at
// declaration index idx.
func (g *Graph) PassNameAt(idx int) string { return g.passes[idx].Name }

// ScheduledPassName returns the name of the pass at scheduled
// position pos.
func (g *Graph) ScheduledPassName(pos int) string { return g.passes[g.schedule[pos]].Name }

// IsCulled reports whether the pass at declaration index idx was
// culled by the most recent Compile.
func (g *Graph) IsCulled(idx int) bool { return g.culled[idx] }

// PeakLiveImages reports the peak simultaneous live physical image
// count, including aliasing effects from the most recent Compile.
func (g *Graph) PeakLiveImages() int { return g.stats.PeakPhysicalImages }

// PresentImageLayout reports the layout the present image is left in
// once Compile has run and Execute has completed a frame.
func (g *Graph) PresentImageLayout() (layout string, ok bool) {
	if !g.presentImage.IsValid() {
		return "", false
	}
	if _, found := g.layoutFinal[g.presentImage]; found {
		return layoutName(g.layoutFinal[g.presentImage]), true
	}
	return "", false
}
