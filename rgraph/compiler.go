// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rgraph

import (
	"sort"

	"github.com/cogentforge/vkr/alloc"
	"github.com/cogentforge/vkr/backend"
	"github.com/cogentforge/vkr/handle"
)

// edge is a dependency edge from pass producerIdx to pass consumerIdx
// in declaration order (indices into g.passes).
type edge struct{ from, to int }

// Compile runs the ten-step algorithm of spec.md §4.H: validate,
// build the dependency graph, Kahn-schedule, cull, analyze resource
// lifetimes, allocate physical resources, build render targets,
// compute barriers, resolve executors, and mark the graph compiled.
// On failure it returns an error and leaves the graph in its
// pre-compile state so the caller may fix declarations and retry.
func (g *Graph) Compile() error {
	if err := g.validate(); err != nil {
		return err
	}

	edges := g.buildDependencyEdges()

	order, err := g.topoSchedule(edges)
	if err != nil {
		return err
	}

	culled := g.cull(order, edges)

	scheduled := make([]int, 0, len(order))
	for _, idx := range order {
		if !culled[idx] {
			scheduled = append(scheduled, idx)
		}
	}

	g.lifetimeAnalysis(scheduled)

	if err := g.allocatePhysical(); err != nil {
		return err
	}

	g.buildRenderTargets(scheduled)

	g.computeBarriers(scheduled)

	if err := g.resolveExecutors(scheduled); err != nil {
		return err
	}

	g.schedule = scheduled
	g.culled = culled
	g.compiled = true
	return nil
}

func (g *Graph) validate() error {
	presentFound := false
	for _, p := range g.passes {
		for _, a := range p.ColorAttachments {
			if _, ok := g.images.Get(a.ImageHandle); !ok {
				return &Error{Kind: KindInvalidParameter, Msg: "pass " + p.Name + " references unknown color attachment image"}
			}
			if a.ImageHandle.Equal(g.presentImage) {
				presentFound = true
			}
			if !containsImageUse(p.ImageWrites, a.ImageHandle) && !a.ReadOnly {
				return &Error{Kind: KindInvalidParameter, Msg: "pass " + p.Name + " color attachment missing from write set"}
			}
		}
		if p.DepthAttachment != nil {
			if _, ok := g.images.Get(p.DepthAttachment.ImageHandle); !ok {
				return &Error{Kind: KindInvalidParameter, Msg: "pass " + p.Name + " references unknown depth attachment image"}
			}
			if p.ReadOnlyDepth && !p.DepthAttachment.ReadOnly {
				return &Error{Kind: KindInvalidParameter, Msg: "pass " + p.Name + " read_only_depth inconsistent with attachment"}
			}
		}
		for _, u := range p.ImageReads {
			if _, ok := g.images.Get(u.ImageHandle); !ok {
				return &Error{Kind: KindInvalidParameter, Msg: "pass " + p.Name + " reads unknown image"}
			}
		}
		for _, u := range p.ImageWrites {
			if _, ok := g.images.Get(u.ImageHandle); !ok {
				return &Error{Kind: KindInvalidParameter, Msg: "pass " + p.Name + " writes unknown image"}
			}
		}
		for _, u := range p.BufferReads {
			if _, ok := g.buffers.Get(u.BufferHandle); !ok {
				return &Error{Kind: KindInvalidParameter, Msg: "pass " + p.Name + " reads unknown buffer"}
			}
		}
		for _, u := range p.BufferWrites {
			if _, ok := g.buffers.Get(u.BufferHandle); !ok {
				return &Error{Kind: KindInvalidParameter, Msg: "pass " + p.Name + " writes unknown buffer"}
			}
		}
		if p.ExecuteName != "" {
			if _, ok := g.executors[p.ExecuteName]; !ok && p.Execute == nil {
				return &Error{Kind: KindInvalidParameter, Msg: "pass " + p.Name + " execute_name does not resolve and no direct execute set"}
			}
		} else if p.Execute == nil {
			return &Error{Kind: KindInvalidParameter, Msg: "pass " + p.Name + " has neither execute nor execute_name"}
		}
	}
	if g.presentImage.IsValid() && !presentFound {
		return &Error{Kind: KindInvalidParameter, Msg: "present image is not used as a color attachment in any pass"}
	}
	return nil
}

func containsImageUse(uses []ImageUse, h handle.Handle) bool {
	for _, u := range uses {
		if u.ImageHandle.Equal(h) {
			return true
		}
	}
	return false
}

// buildDependencyEdges adds an edge from producer to consumer whenever
// the consumer reads/writes a resource the producer writes (RAW,
// WAW), respecting declaration order.
func (g *Graph) buildDependencyEdges() []edge {
	var edges []edge
	lastWriterImage := make(map[handle.Handle]int)
	lastWriterBuffer := make(map[handle.Handle]int)

	for i, p := range g.passes {
		reads, writes := passImageUses(p)
		bReads, bWrites := passBufferUses(p)

		for _, h := range reads {
			if prod, ok := lastWriterImage[h]; ok && prod != i {
				edges = append(edges, edge{from: prod, to: i})
			}
		}
		for _, h := range bReads {
			if prod, ok := lastWriterBuffer[h]; ok && prod != i {
				edges = append(edges, edge{from: prod, to: i})
			}
		}
		for _, h := range writes {
			if prod, ok := lastWriterImage[h]; ok && prod != i {
				edges = append(edges, edge{from: prod, to: i}) // WAW
			}
			lastWriterImage[h] = i
		}
		for _, h := range bWrites {
			if prod, ok := lastWriterBuffer[h]; ok && prod != i {
				edges = append(edges, edge{from: prod, to: i})
			}
			lastWriterBuffer[h] = i
		}
	}
	return edges
}

func passImageUses(p *Pass) (reads, writes []handle.Handle) {
	for _, a := range p.ColorAttachments {
		if a.ReadOnly {
			reads = append(reads, a.ImageHandle)
		} else {
			writes = append(writes, a.ImageHandle)
		}
	}
	if p.DepthAttachment != nil {
		if p.DepthAttachment.ReadOnly {
			reads = append(reads, p.DepthAttachment.ImageHandle)
		} else {
			writes = append(writes, p.DepthAttachment.ImageHandle)
		}
	}
	for _, u := range p.ImageReads {
		reads = append(reads, u.ImageHandle)
	}
	for _, u := range p.ImageWrites {
		writes = append(writes, u.ImageHandle)
	}
	return
}

func passBufferUses(p *Pass) (reads, writes []handle.Handle) {
	for _, u := range p.BufferReads {
		reads = append(reads, u.BufferHandle)
	}
	for _, u := range p.BufferWrites {
		writes = append(writes, u.BufferHandle)
	}
	return
}

// topoSchedule runs Kahn's algorithm, tie-breaking ready nodes by
// ascending declaration index. A remaining cycle is a hard error.
func (g *Graph) topoSchedule(edges []edge) ([]int, error) {
	n := len(g.passes)
	indeg := make([]int, n)
	adj := make([][]int, n)
	for _, e := range edges {
		adj[e.from] = append(adj[e.from], e.to)
		indeg[e.to]++
	}

	var ready []int
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}
	sort.Ints(ready)

	order := make([]int, 0, n)
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		order = append(order, cur)
		for _, next := range adj[cur] {
			indeg[next]--
			if indeg[next] == 0 {
				ready = insertSorted(ready, next)
			}
		}
	}

	if len(order) != n {
		return nil, &Error{Kind: KindInvalidParameter, Msg: "cycle detected among render graph passes"}
	}
	return order, nil
}

func insertSorted(s []int, v int) []int {
	i := sort.SearchInts(s, v)
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// cull removes passes (unless NO_CULL) whose outputs are not
// transitively reachable from an exported or present resource, by
// backward reachability from the passes that produce those resources.
func (g *Graph) cull(order []int, edges []edge) map[int]bool {
	n := len(g.passes)
	keep := make(map[int]bool, n)

	terminal := map[handle.Handle]bool{}
	if g.presentImage.IsValid() {
		terminal[g.presentImage] = true
	}
	for _, h := range g.exportImages {
		terminal[h] = true
	}
	for _, h := range g.exportBuffers {
		terminal[h] = true
	}

	for i, p := range g.passes {
		if p.Flags&PassFlagNoCull != 0 {
			keep[i] = true
			continue
		}
		_, writes := passImageUses(p)
		_, bWrites := passBufferUses(p)
		for _, h := range writes {
			if terminal[h] {
				keep[i] = true
			}
		}
		for _, h := range bWrites {
			if terminal[h] {
				keep[i] = true
			}
		}
	}

	// propagate backward: predecessors of a kept pass are kept too.
	predecessors := make([][]int, n)
	for _, e := range edges {
		predecessors[e.to] = append(predecessors[e.to], e.from)
	}
	changed := true
	for changed {
		changed = false
		for i := 0; i < n; i++ {
			if !keep[i] {
				continue
			}
			for _, pred := range predecessors[i] {
				if !keep[pred] {
					keep[pred] = true
					changed = true
				}
			}
		}
	}

	culled := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		culled[i] = !keep[i]
	}
	return culled
}

// lifetimeAnalysis computes the first and last scheduled position each
// resource is touched at, after culling, for transient aliasing.
func (g *Graph) lifetimeAnalysis(scheduled []int) {
	for pos, idx := range scheduled {
		p := g.passes[idx]
		reads, writes := passImageUses(p)
		for _, h := range append(reads, writes...) {
			r := g.images.MustGet(h)
			if r == nil {
				continue
			}
			if r.firstPass == -1 {
				r.firstPass = pos
			}
			r.lastPass = pos
		}
		bReads, bWrites := passBufferUses(p)
		for _, h := range append(bReads, bWrites...) {
			r := g.buffers.MustGet(h)
			if r == nil {
				continue
			}
			if r.firstPass == -1 {
				r.firstPass = pos
			}
			r.lastPass = pos
		}
	}
}

// aliasGroup is a set of transient image handles that may share one
// physical backend allocation because their lifetimes never overlap.
// representative holds the backend resources actually created; every
// other member of the group reuses them instead of allocating its own.
type aliasGroup struct {
	representative handle.Handle
	handles        []handle.Handle
	lastUsed       int
}

// aliasGroupFootprint is the approximate scratch byte cost charged
// against g.allocator for one aliasGroup's bookkeeping, for the Scope
// accounting allocatePhysical opens around the alias-matching pass.
const aliasGroupFootprint = 48

// allocatePhysical creates backend images/buffers for every
// non-EXTERNAL resource. TRANSIENT images with disjoint lifetimes
// share a physical slot (lowest-index compatible group, first fit);
// PER_IMAGE resources get one physical resource per swapchain image.
// The alias-group bookkeeping built up along the way (groups, and each
// group's handles slice) is scratch: it exists only to drive this
// compile pass and is discarded once physical resources are assigned,
// so it is charged to g.allocator inside a Scope rather than left for
// the Go GC to account for silently.
func (g *Graph) allocatePhysical() error {
	scope := g.allocator.BeginScope()
	defer g.allocator.EndScope(scope)

	var groups []*aliasGroup

	// iterate images in a stable, deterministic order (by handle Id).
	ids := g.sortedImageIDs()
	for _, h := range ids {
		r := g.images.MustGet(h)
		if r == nil || r.Flags.Has(FlagExternal) {
			continue
		}
		if len(r.physical) > 0 {
			continue // already allocated from a prior compile
		}

		count := 1
		if r.Flags.Has(FlagPerImage) {
			count = g.numImages
		}
		r.physical = make([]handle.Handle, count)
		r.backendTex = make([]backend.Texture, count)
		r.layout = make([]backend.ImageLayout, count)

		if r.Flags.Has(FlagTransient) && !r.Flags.Has(FlagPerImage) {
			grp := g.findAliasGroup(groups, r)
			if grp == nil {
				grp = &aliasGroup{lastUsed: -1}
				groups = append(groups, grp)
				g.allocator.Alloc(aliasGroupFootprint, alloc.Struct)
			} else if rep := g.images.MustGet(grp.representative); rep != nil && len(rep.physical) > 0 {
				// reuse the group's already-allocated physical resource.
				r.physical[0] = rep.physical[0]
				r.backendTex[0] = rep.backendTex[0]
				grp.handles = append(grp.handles, h)
				grp.lastUsed = r.lastPass
				continue
			}
			grp.handles = append(grp.handles, h)
			grp.lastUsed = r.lastPass
			grp.representative = h
		}

		if g.device == nil {
			continue
		}
		for i := 0; i < count; i++ {
			tex, ph, err := g.device.TextureCreate(backend.ImageDesc{
				Width: r.Desc.Width, Height: r.Desc.Height, Format: r.Desc.Format,
				Usage: r.Desc.Usage, Samples: r.Desc.Samples, Layers: r.Desc.Layers,
				Mips: r.Desc.Mips, Type: r.Desc.Type,
			})
			if err != nil {
				return &Error{Kind: KindBackendError, Msg: "texture create failed for " + r.Name}
			}
			r.physical[i] = ph
			r.backendTex[i] = tex
		}
	}

	for _, h := range g.sortedBufferIDs() {
		r := g.buffers.MustGet(h)
		if r == nil || r.Flags.Has(FlagExternal) || r.physical.IsValid() {
			continue
		}
		if g.device == nil {
			continue
		}
		_, ph, err := g.device.VertexBufferCreateDynamic(backend.BufferDesc{Size: r.Desc.Size, Usage: r.Desc.Usage})
		if err != nil {
			return &Error{Kind: KindBackendError, Msg: "buffer create failed for " + r.Name}
		}
		r.physical = ph
	}

	// Record the peak simultaneous transient image count implied by
	// aliasing: the number of alias groups actually needed.
	nonTransient := 0
	for _, h := range g.sortedImageIDs() {
		r := g.images.MustGet(h)
		if r != nil && (!r.Flags.Has(FlagTransient) || r.Flags.Has(FlagPerImage)) && !r.Flags.Has(FlagExternal) {
			nonTransient++
		}
	}
	peak := g.peakLiveTransientCount() + nonTransient
	if peak > g.stats.PeakPhysicalImages {
		g.stats.PeakPhysicalImages = peak
	}
	return nil
}

// findAliasGroup returns a group whose last-used pass index is before
// r's first use, meaning r's lifetime is disjoint and it may share
// that group's physical slot.
func (g *Graph) findAliasGroup(groups []*aliasGroup, r *ImageResource) *aliasGroup {
	for _, grp := range groups {
		if grp.lastUsed < r.firstPass {
			return grp
		}
	}
	return nil
}

// peakLiveTransientCount walks the schedule positions and counts the
// maximum number of transient images simultaneously live.
func (g *Graph) peakLiveTransientCount() int {
	maxLive := 0
	ids := g.sortedImageIDs()
	// Determine the overall max pass position touched.
	maxPos := -1
	for _, h := range ids {
		r := g.images.MustGet(h)
		if r != nil && r.lastPass > maxPos {
			maxPos = r.lastPass
		}
	}
	for pos := 0; pos <= maxPos; pos++ {
		live := 0
		for _, h := range ids {
			r := g.images.MustGet(h)
			if r == nil || !r.Flags.Has(FlagTransient) || r.Flags.Has(FlagPerImage) {
				continue
			}
			if r.firstPass <= pos && pos <= r.lastPass {
				live++
			}
		}
		if live > maxLive {
			maxLive = live
		}
	}
	return maxLive
}

func (g *Graph) sortedImageIDs() []handle.Handle {
	var out []handle.Handle
	g.images.Range(func(h handle.Handle) { out = append(out, h) })
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

func (g *Graph) sortedBufferIDs() []handle.Handle {
	var out []handle.Handle
	g.buffers.Range(func(h handle.Handle) { out = append(out, h) })
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

// buildRenderTargets builds one RenderTarget per swapchain image index
// for each scheduled graphics pass.
func (g *Graph) buildRenderTargets(scheduled []int) {
	for pos, idx := range scheduled {
		p := g.passes[idx]
		if p.Type != PassGraphics {
			continue
		}
		targets := make([]*RenderTarget, g.numImages)
		for img := 0; img < g.numImages; img++ {
			rt := &RenderTarget{}
			for _, a := range p.ColorAttachments {
				r := g.images.MustGet(a.ImageHandle)
				rt.Color = append(rt.Color, g.physicalFor(r, img))
				rt.Width, rt.Height = r.Desc.Width, r.Desc.Height
			}
			if p.DepthAttachment != nil {
				r := g.images.MustGet(p.DepthAttachment.ImageHandle)
				rt.Depth = g.physicalFor(r, img)
			}
			targets[img] = rt
		}
		g.targets[pos] = targets
	}
}

func (g *Graph) physicalFor(r *ImageResource, imageIndex int) handle.Handle {
	if r == nil {
		return handle.Invalid
	}
	if r.Flags.Has(FlagExternal) {
		if len(r.ImportH) == 1 {
			return r.ImportH[0]
		}
		if imageIndex < len(r.ImportH) {
			return r.ImportH[imageIndex]
		}
		return handle.Invalid
	}
	if len(r.physical) == 1 {
		return r.physical[0]
	}
	if imageIndex < len(r.physical) {
		return r.physical[imageIndex]
	}
	return handle.Invalid
}

// targetLayoutFor maps an access kind (and read-only-depth flag) to
// the Vulkan-style layout a barrier should transition into.
func targetLayoutFor(kind AccessKind, readOnlyDepth bool) backend.ImageLayout {
	switch kind {
	case AccessColorAttachment:
		return backend.LayoutColorAttachment
	case AccessDepthAttachment:
		if readOnlyDepth {
			return backend.LayoutDepthReadOnly
		}
		return backend.LayoutDepthAttachmentOptimal
	case AccessShaderRead:
		return backend.LayoutShaderReadOnly
	case AccessTransferSrc:
		return backend.LayoutTransferSrc
	case AccessTransferDst:
		return backend.LayoutTransferDst
	default:
		return backend.LayoutUndefined
	}
}

// computeBarriers walks the schedule and, for every image use,
// precomputes a transition from the image's last known layout (or
// UNDEFINED for its first use from an unimported/undefined state) to
// the target layout implied by this use's access kind.
func (g *Graph) computeBarriers(scheduled []int) {
	current := map[handle.Handle]backend.ImageLayout{}

	for pos, idx := range scheduled {
		p := g.passes[idx]
		var passBarriers []Barrier

		apply := func(h handle.Handle, kind AccessKind, readOnlyDepth bool) {
			target := targetLayoutFor(kind, readOnlyDepth)
			src, ok := current[h]
			if !ok {
				src = backend.LayoutUndefined
			}
			if src != target {
				passBarriers = append(passBarriers, Barrier{ImageHandle: h, SrcLayout: src, DstLayout: target})
				current[h] = target
			}
		}

		for _, a := range p.ColorAttachments {
			apply(a.ImageHandle, AccessColorAttachment, false)
		}
		if p.DepthAttachment != nil {
			apply(p.DepthAttachment.ImageHandle, AccessDepthAttachment, p.ReadOnlyDepth)
		}
		for _, u := range p.ImageReads {
			apply(u.ImageHandle, u.Access, false)
		}
		for _, u := range p.ImageWrites {
			apply(u.ImageHandle, u.Access, false)
		}

		g.barriers[pos] = passBarriers
	}

	// exported/present images transition to their final layout after
	// the last scheduled pass.
	var final []Barrier
	if g.presentImage.IsValid() {
		src := current[g.presentImage]
		final = append(final, Barrier{ImageHandle: g.presentImage, SrcLayout: src, DstLayout: backend.LayoutPresent})
		current[g.presentImage] = backend.LayoutPresent
	}
	for _, h := range g.exportImages {
		src := current[h]
		final = append(final, Barrier{ImageHandle: h, SrcLayout: src, DstLayout: backend.LayoutShaderReadOnly})
		current[h] = backend.LayoutShaderReadOnly
	}
	g.finalBarriers = final
	g.layoutFinal = current
}

func (g *Graph) resolveExecutors(scheduled []int) error {
	for _, idx := range scheduled {
		p := g.passes[idx]
		if p.Execute != nil {
			continue // direct callback wins even if execute_name is also set
		}
		entry, ok := g.executors[p.ExecuteName]
		if !ok {
			return &Error{Kind: KindResourceNotLoaded, Msg: "executor " + p.ExecuteName + " not registered"}
		}
		p.Execute = entry.Callback
		p.UserData = entry.UserData
	}
	return nil
}
