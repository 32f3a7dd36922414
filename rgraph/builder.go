// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rgraph

import (
	"github.com/cogentforge/vkr/handle"
	"github.com/cogentforge/vkr/pipeline"
)

// Builder is the pass construction DSL of spec.md §4.G. Per spec.md
// §9's "builder ephemerality" design note, a Builder holds only an
// index into the graph's pass vector and becomes invalid on the next
// AddPass or Compile call — do not retain one across either.
type Builder struct {
	g   *Graph
	idx int
}

// AddPass appends a new pass and returns a Builder for it. Any
// previously returned Builder is no longer valid to use.
func (g *Graph) AddPass(t PassType, name string) *Builder {
	p := &Pass{Name: name, Type: t}
	g.passes = append(g.passes, p)
	g.compiled = false
	return &Builder{g: g, idx: len(g.passes) - 1}
}

func (b *Builder) pass() *Pass { return b.g.passes[b.idx] }

// SetExecute sets the direct callback invoked by the executor.
func (b *Builder) SetExecute(fn ExecuteFunc, userData any) *Builder {
	p := b.pass()
	p.Execute = fn
	p.UserData = userData
	return b
}

// SetExecuteName names an executor-registry entry to resolve the
// callback from at compile time; a direct Execute callback wins if
// both are set.
func (b *Builder) SetExecuteName(name string) *Builder {
	b.pass().ExecuteName = name
	return b
}

// SetFlags sets pass-level flags (DISABLED, NO_CULL).
func (b *Builder) SetFlags(flags PassFlags) *Builder {
	b.pass().Flags = flags
	return b
}

// SetDomain sets the pipeline domain this pass binds materials under.
func (b *Builder) SetDomain(d pipeline.Domain) *Builder {
	b.pass().Domain = d
	return b
}

// AddColorAttachment appends a color attachment use and registers it
// as a write.
func (b *Builder) AddColorAttachment(use AttachmentUse) *Builder {
	p := b.pass()
	p.ColorAttachments = append(p.ColorAttachments, use)
	if !use.ReadOnly {
		p.ImageWrites = append(p.ImageWrites, ImageUse{ImageHandle: use.ImageHandle, Access: AccessColorAttachment})
	}
	return b
}

// SetDepthAttachment sets the pass's depth attachment and registers it
// as a write unless ReadOnly. The ReadOnly case needs no separate
// ImageReads entry: passImageUses already derives a read for this
// handle from DepthAttachment.ReadOnly, and duplicating it here made
// computeBarriers apply the same handle twice, the second time with
// the wrong access/layout.
func (b *Builder) SetDepthAttachment(use AttachmentUse) *Builder {
	p := b.pass()
	p.DepthAttachment = &use
	p.ReadOnlyDepth = use.ReadOnly
	if !use.ReadOnly {
		p.ImageWrites = append(p.ImageWrites, ImageUse{ImageHandle: use.ImageHandle, Access: AccessDepthAttachment})
	}
	return b
}

// ReadImageUse declares a non-attachment image read use.
func (b *Builder) ReadImageUse(u ImageUse) *Builder {
	p := b.pass()
	p.ImageReads = append(p.ImageReads, u)
	return b
}

// WriteImageUse declares a non-attachment image write use.
func (b *Builder) WriteImageUse(u ImageUse) *Builder {
	p := b.pass()
	p.ImageWrites = append(p.ImageWrites, u)
	return b
}

// ReadBuffer declares a buffer read use.
func (b *Builder) ReadBuffer(u BufferUse) *Builder {
	p := b.pass()
	p.BufferReads = append(p.BufferReads, u)
	return b
}

// WriteBuffer declares a buffer write use.
func (b *Builder) WriteBuffer(u BufferUse) *Builder {
	p := b.pass()
	p.BufferWrites = append(p.BufferWrites, u)
	return b
}

// SetPresentImage marks h as the present target. Compile reads it for
// validation, culling and the final-layout barrier, so it is set before
// Compile; a change made later takes effect at the next Compile.
func (g *Graph) SetPresentImage(h handle.Handle) {
	g.presentImage = h
}

// ExportImage marks h as an output that must retain its final
// layout/access beyond the graph. Like SetPresentImage it is read by
// Compile (culling and final-layout barriers), so it is set before Compile.
func (g *Graph) ExportImage(h handle.Handle) {
	g.exportImages = append(g.exportImages, h)
}

// ExportBuffer marks h as an output buffer to retain beyond the graph.
func (g *Graph) ExportBuffer(h handle.Handle) {
	g.exportBuffers = append(g.exportBuffers, h)
}

// RegisterExecutor adds name to the executor registry.
func (g *Graph) RegisterExecutor(name string, fn ExecuteFunc, userData any) {
	g.executors[name] = ExecutorEntry{Callback: fn, UserData: userData}
}
