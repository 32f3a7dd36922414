// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package graphio parses the versioned JSON render-graph document of
// spec.md §6.4 into a lowered representation, expands conditions
// (editor on/off) and repeats (e.g. shadow cascade count), resolves
// "format": "swapchain" against the active frame info, and drives the
// rgraph builder to produce one graph instance per frame. Grounded on
// base/iox's Decoder/DecoderFunc/Open/Read wrapper idiom, applied here
// to encoding/json instead of the teacher's settings/theme files.
package graphio

// Document is the top-level JSON shape of §6.4.
type Document struct {
	Version   int            `json:"version"`
	Name      string         `json:"name"`
	Resources []ResourceDoc  `json:"resources"`
	Passes    []PassDoc      `json:"passes"`
	Outputs   OutputsDoc     `json:"outputs"`
}

// Condition is one of {"", "editor_enabled", "editor_disabled"}.
type Condition string

const (
	ConditionNone           Condition = ""
	ConditionEditorEnabled  Condition = "editor_enabled"
	ConditionEditorDisabled Condition = "editor_disabled"
)

// Repeat carries spec.md §9's Open Question verbatim: the lowered
// representation stores both the token and any literal integer, but
// only the token is expanded against FrameInfo (see DESIGN.md for the
// decision on literal pre-expansion, which this loader does NOT do).
type Repeat struct {
	CountSource string `json:"count_source"`
	Literal     *int   `json:"count_literal,omitempty"`
}

// IsSet reports whether this pass/resource has a repeat expression at
// all (either a token or a literal count).
func (r Repeat) IsSet() bool { return r.CountSource != "" || r.Literal != nil }

// ExtentDoc is the image extent mode of §6.4.
type ExtentDoc struct {
	Mode       string `json:"mode"` // window | viewport | fixed | square
	Width      uint32 `json:"width"`
	Height     uint32 `json:"height"`
	SizeSource string `json:"size_source"`
}

// ImageDoc is the "image" sub-object of a resource entry.
type ImageDoc struct {
	IsImport   bool      `json:"is_import"`
	ImportName string    `json:"import_name"`
	Format     string    `json:"format"` // "swapchain" or a named format
	Usage      []string  `json:"usage"`
	Layers     string    `json:"layers"` // u32 literal or token, kept as string
	Extent     ExtentDoc `json:"extent"`
}

// BufferDoc is the "buffer" sub-object of a resource entry.
type BufferDoc struct {
	Size  uint64   `json:"size"`
	Usage []string `json:"usage"`
}

// ResourceDoc is one entry of the top-level "resources" array.
type ResourceDoc struct {
	Name      string     `json:"name"`
	Type      string     `json:"type"` // "image" | "buffer"
	Condition Condition  `json:"condition"`
	Repeat    Repeat     `json:"repeat"`
	Flags     []string   `json:"flags"`
	Image     *ImageDoc  `json:"image"`
	Buffer    *BufferDoc `json:"buffer"`
}

// AttachmentDoc is one color/depth attachment use in a pass.
type AttachmentDoc struct {
	Image    string    `json:"image"`
	LoadOp   string    `json:"load_op"`
	StoreOp  string    `json:"store_op"`
	Clear    []float32 `json:"clear"`
	ReadOnly bool      `json:"read_only"`
}

// AttachmentsDoc groups a pass's color/depth attachments.
type AttachmentsDoc struct {
	Colors []AttachmentDoc `json:"colors"`
	Depth  *AttachmentDoc  `json:"depth"`
}

// UseDoc is a non-attachment image/buffer read or write declaration.
type UseDoc struct {
	Name   string `json:"name"`
	Access string `json:"access"`
}

// PassDoc is one entry of the top-level "passes" array.
type PassDoc struct {
	Name        string         `json:"name"`
	Type        string         `json:"type"` // GRAPHICS | COMPUTE | TRANSFER
	Flags       []string       `json:"flags"`
	Domain      string         `json:"domain"`
	Condition   Condition      `json:"condition"`
	Repeat      Repeat         `json:"repeat"`
	Reads       []UseDoc       `json:"reads"`
	Writes      []UseDoc       `json:"writes"`
	Attachments AttachmentsDoc `json:"attachments"`
	Execute     string         `json:"execute"`
}

// OutputsDoc is the top-level "outputs" object.
type OutputsDoc struct {
	Present       string   `json:"present"`
	ExportImages  []string `json:"export_images"`
	ExportBuffers []string `json:"export_buffers"`
}
