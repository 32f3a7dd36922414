// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graphio

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cogentforge/vkr/base/iox"
	"github.com/cogentforge/vkr/handle"
	"github.com/cogentforge/vkr/pipeline"
	"github.com/cogentforge/vkr/rgraph"
)

// jsonDecoder adapts encoding/json.Decoder to iox.DecoderFunc the way
// the teacher's settings loaders do for their own formats.
func jsonDecoder(r io.Reader) iox.Decoder { return json.NewDecoder(r) }

// Error carries spec.md §6.6's error-kind taxonomy for this package.
type Error struct {
	Kind Kind
	Msg  string
}

type Kind int

const (
	KindNone Kind = iota
	KindInvalidParameter
	KindResourceNotLoaded
)

func (e *Error) Error() string { return fmt.Sprintf("graphio: %s", e.Msg) }

// Load decodes a JSON render-graph document from the file at path (via the shared
// iox.Decoder wrapper) and builds it into g against frame, expanding
// conditions and repeats. It produces one graph instance per frame,
// per spec.md §4.J, and does not call g.Compile — that remains the
// caller's explicit step.
func Load(path string, frame rgraph.FrameInfo, g *rgraph.Graph) error {
	var doc Document
	if err := iox.Open(&doc, path, jsonDecoder); err != nil {
		return &Error{Kind: KindInvalidParameter, Msg: "open/decode: " + err.Error()}
	}
	return Build(doc, frame, g)
}

// Build lowers doc into g against frame without touching the
// filesystem; exported for callers that already have a parsed
// Document (e.g. embedded or generated graphs).
func Build(doc Document, frame rgraph.FrameInfo, g *rgraph.Graph) error {
	byName := map[string]handle.Handle{}
	isBuffer := map[string]bool{}

	for _, res := range doc.Resources {
		if !conditionHolds(res.Condition, frame) {
			continue
		}
		count, err := expandRepeat(res.Repeat, frame)
		if err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			name := repeatName(res.Name, res.Repeat, i)
			switch res.Type {
			case "image":
				if res.Image == nil {
					return &Error{Kind: KindInvalidParameter, Msg: "resource " + res.Name + " missing image"}
				}
				h := buildImage(g, name, *res.Image, res.Flags, frame)
				byName[name] = h
			case "buffer":
				if res.Buffer == nil {
					return &Error{Kind: KindInvalidParameter, Msg: "resource " + res.Name + " missing buffer"}
				}
				h := buildBuffer(g, name, *res.Buffer, res.Flags)
				byName[name] = h
				isBuffer[name] = true
			default:
				return &Error{Kind: KindInvalidParameter, Msg: "unknown resource type " + res.Type}
			}
		}
	}

	for _, p := range doc.Passes {
		if !conditionHolds(p.Condition, frame) {
			continue
		}
		count, err := expandRepeat(p.Repeat, frame)
		if err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			name := repeatName(p.Name, p.Repeat, i)
			if err := buildPass(g, name, p, byName, isBuffer, i); err != nil {
				return err
			}
		}
	}

	if doc.Outputs.Present != "" {
		h, ok := byName[doc.Outputs.Present]
		if !ok {
			return &Error{Kind: KindResourceNotLoaded, Msg: "present resource not found: " + doc.Outputs.Present}
		}
		g.SetPresentImage(h)
	}
	for _, name := range doc.Outputs.ExportImages {
		if h, ok := byName[name]; ok {
			g.ExportImage(h)
		}
	}
	for _, name := range doc.Outputs.ExportBuffers {
		if h, ok := byName[name]; ok {
			g.ExportBuffer(h)
		}
	}

	return nil
}

func conditionHolds(c Condition, frame rgraph.FrameInfo) bool {
	switch c {
	case ConditionNone:
		return true
	case ConditionEditorEnabled:
		return frame.EditorEnabled
	case ConditionEditorDisabled:
		return !frame.EditorEnabled
	default:
		return true
	}
}

// expandRepeat resolves a repeat expression's count. Per the Open
// Question decision recorded in DESIGN.md, only the token form is
// expanded against frame; a literal is used as-is without further
// lookup, and no repeat at all means count = 1.
func expandRepeat(r Repeat, frame rgraph.FrameInfo) (int, error) {
	if !r.IsSet() {
		return 1, nil
	}
	if r.CountSource != "" {
		switch r.CountSource {
		case "shadow_cascade_count":
			return int(frame.ShadowCascadeCount), nil
		default:
			return 0, &Error{Kind: KindInvalidParameter, Msg: "unknown repeat count_source: " + r.CountSource}
		}
	}
	if r.Literal != nil {
		return *r.Literal, nil
	}
	return 1, nil
}

func repeatName(base string, r Repeat, index int) string {
	if !r.IsSet() {
		return base
	}
	return fmt.Sprintf("%s[%d]", base, index)
}

func resolveFormat(format string, frame rgraph.FrameInfo) string {
	if format == "swapchain" {
		return frame.SwapchainFormat
	}
	return format
}

func resolveExtent(e ExtentDoc, frame rgraph.FrameInfo) (uint32, uint32) {
	switch e.Mode {
	case "window":
		return frame.WindowW, frame.WindowH
	case "viewport":
		return frame.ViewportW, frame.ViewportH
	case "square":
		if e.SizeSource == "shadow_map_size" {
			return frame.ShadowMapSize, frame.ShadowMapSize
		}
		return e.Width, e.Width
	case "fixed":
		fallthrough
	default:
		return e.Width, e.Height
	}
}

func buildImage(g *rgraph.Graph, name string, doc ImageDoc, flagNames []string, frame rgraph.FrameInfo) handle.Handle {
	w, h := resolveExtent(doc.Extent, frame)
	desc := rgraph.ImageDesc{
		Width:  w,
		Height: h,
		Format: resolveFormat(doc.Format, frame),
		Usage:  usageBitmask(doc.Usage),
	}
	return g.CreateImage(name, desc, parseFlags(flagNames))
}

func buildBuffer(g *rgraph.Graph, name string, doc BufferDoc, flagNames []string) handle.Handle {
	desc := rgraph.BufferDesc{Size: doc.Size, Usage: usageBitmask(doc.Usage)}
	return g.CreateBuffer(name, desc, parseFlags(flagNames))
}

// usageBitmask maps the JSON document's usage-name strings onto the
// backend-facing bitmask rgraph.ImageDesc/BufferDesc carry; unrecognized
// names are ignored rather than rejected, since new usage flags are
// expected to outpace this loader.
var usageBits = map[string]uint32{
	"color_attachment":   1 << 0,
	"depth_attachment":   1 << 1,
	"sampled":            1 << 2,
	"storage":            1 << 3,
	"transfer_src":       1 << 4,
	"transfer_dst":       1 << 5,
	"vertex_buffer":      1 << 6,
	"index_buffer":       1 << 7,
	"uniform_buffer":     1 << 8,
	"indirect_buffer":    1 << 9,
}

func usageBitmask(names []string) uint32 {
	var mask uint32
	for _, n := range names {
		mask |= usageBits[strings.ToLower(n)]
	}
	return mask
}

func parseFlags(names []string) rgraph.ResourceFlags {
	var flags rgraph.ResourceFlags
	for _, n := range names {
		switch strings.ToUpper(n) {
		case "TRANSIENT":
			flags |= rgraph.FlagTransient
		case "PERSISTENT":
			flags |= rgraph.FlagPersistent
		case "EXTERNAL":
			flags |= rgraph.FlagExternal
		case "PER_IMAGE":
			flags |= rgraph.FlagPerImage
		case "RESIZABLE":
			flags |= rgraph.FlagResizable
		case "FORCE_ARRAY":
			flags |= rgraph.FlagForceArray
		}
	}
	return flags
}

func parsePassType(s string) rgraph.PassType {
	switch strings.ToUpper(s) {
	case "COMPUTE":
		return rgraph.PassCompute
	case "TRANSFER":
		return rgraph.PassTransfer
	default:
		return rgraph.PassGraphics
	}
}

func parsePassFlags(names []string) rgraph.PassFlags {
	var flags rgraph.PassFlags
	for _, n := range names {
		switch strings.ToUpper(n) {
		case "DISABLED":
			flags |= rgraph.PassFlagDisabled
		case "NO_CULL":
			flags |= rgraph.PassFlagNoCull
		}
	}
	return flags
}

func parseDomain(s string) pipeline.Domain {
	switch strings.ToUpper(s) {
	case "WORLD_TRANSPARENT":
		return pipeline.DomainWorldTransparent
	case "UI":
		return pipeline.DomainUI
	case "SHADOW":
		return pipeline.DomainShadow
	case "POST":
		return pipeline.DomainPost
	default:
		return pipeline.DomainWorld
	}
}

func parseLoadOp(s string) rgraph.LoadOp {
	switch strings.ToUpper(s) {
	case "CLEAR":
		return rgraph.LoadClear
	case "DONT_CARE":
		return rgraph.LoadDontCare
	default:
		return rgraph.LoadLoad
	}
}

func parseStoreOp(s string) rgraph.StoreOp {
	switch strings.ToUpper(s) {
	case "DONT_CARE":
		return rgraph.StoreDontCare
	default:
		return rgraph.StoreStore
	}
}

func parseAccess(s string) rgraph.AccessKind {
	switch strings.ToUpper(s) {
	case "SHADER_READ":
		return rgraph.AccessShaderRead
	case "TRANSFER_SRC":
		return rgraph.AccessTransferSrc
	case "TRANSFER_DST":
		return rgraph.AccessTransferDst
	case "BUFFER_READ":
		return rgraph.AccessBufferRead
	case "BUFFER_WRITE":
		return rgraph.AccessBufferWrite
	default:
		return rgraph.AccessShaderRead
	}
}

func buildPass(g *rgraph.Graph, name string, doc PassDoc, byName map[string]handle.Handle, isBuffer map[string]bool, repeatIndex int) error {
	b := g.AddPass(parsePassType(doc.Type), name).
		SetFlags(parsePassFlags(doc.Flags)).
		SetDomain(parseDomain(doc.Domain))

	for _, a := range doc.Attachments.Colors {
		h, ok := byName[resolveUseName(a.Image, doc.Repeat, repeatIndex)]
		if !ok {
			return &Error{Kind: KindResourceNotLoaded, Msg: "pass " + name + " color attachment unresolved: " + a.Image}
		}
		b.AddColorAttachment(rgraph.AttachmentUse{
			ImageHandle: h,
			LoadOp:      parseLoadOp(a.LoadOp),
			StoreOp:     parseStoreOp(a.StoreOp),
			Clear:       clearFrom(a.Clear),
			ReadOnly:    a.ReadOnly,
		})
	}
	if doc.Attachments.Depth != nil {
		a := doc.Attachments.Depth
		h, ok := byName[resolveUseName(a.Image, doc.Repeat, repeatIndex)]
		if !ok {
			return &Error{Kind: KindResourceNotLoaded, Msg: "pass " + name + " depth attachment unresolved: " + a.Image}
		}
		b.SetDepthAttachment(rgraph.AttachmentUse{
			ImageHandle: h,
			LoadOp:      parseLoadOp(a.LoadOp),
			StoreOp:     parseStoreOp(a.StoreOp),
			Clear:       clearFrom(a.Clear),
			ReadOnly:    a.ReadOnly,
		})
	}

	for _, u := range doc.Reads {
		rname := resolveUseName(u.Name, doc.Repeat, repeatIndex)
		h, ok := byName[rname]
		if !ok {
			return &Error{Kind: KindResourceNotLoaded, Msg: "pass " + name + " read unresolved: " + u.Name}
		}
		if isBuffer[rname] {
			b.ReadBuffer(rgraph.BufferUse{BufferHandle: h, Access: rgraph.AccessBufferRead})
		} else {
			b.ReadImageUse(rgraph.ImageUse{ImageHandle: h, Access: parseAccess(u.Access)})
		}
	}
	for _, u := range doc.Writes {
		wname := resolveUseName(u.Name, doc.Repeat, repeatIndex)
		h, ok := byName[wname]
		if !ok {
			return &Error{Kind: KindResourceNotLoaded, Msg: "pass " + name + " write unresolved: " + u.Name}
		}
		if isBuffer[wname] {
			b.WriteBuffer(rgraph.BufferUse{BufferHandle: h, Access: rgraph.AccessBufferWrite})
		} else {
			b.WriteImageUse(rgraph.ImageUse{ImageHandle: h, Access: parseAccess(u.Access)})
		}
	}

	if doc.Execute != "" {
		b.SetExecuteName(doc.Execute)
	}
	return nil
}

// resolveUseName resolves an attachment/use reference inside a
// repeated pass (e.g. "shadow_map" inside a pass repeated over
// shadow_cascade_count refers to "shadow_map[i]"). Whenever the pass
// is repeated it returns name[index]; it does not fall back to the
// plain name, so a repeated pass cannot reference a resource that was
// not itself repeated.
func resolveUseName(name string, r Repeat, index int) string {
	if !r.IsSet() {
		return name
	}
	return fmt.Sprintf("%s[%d]", name, index)
}

func clearFrom(v []float32) rgraph.ClearValue {
	var c rgraph.ClearValue
	for i := 0; i < 4 && i < len(v); i++ {
		c.Color[i] = v[i]
	}
	return c
}

