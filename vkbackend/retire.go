// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkbackend

import (
	"log/slog"

	vk "github.com/goki/vulkan"
)

// retireDelayFrames is spec.md §5/§7's K: a buffer a grow-on-Update
// replaced is destroyed only once the frame index has advanced this
// many frames past the one that retired it, so no in-flight command
// buffer recorded against the old buffer can still reference it.
const retireDelayFrames = 3

// maxRetireRing bounds how many retired buffers may sit in the ring at
// once. Exceeding it is the soft error spec.md §7 describes: rather
// than grow the ring unbounded, the device waits idle and flushes it
// immediately.
const maxRetireRing = 8

type retiredBuffer struct {
	buf         vk.Buffer
	mem         vk.DeviceMemory
	retireAfter uint64
}

// retire queues buf/mem for destruction once d.frameIndex has advanced
// past retireAfter. The memory is unmapped right away: nothing holds
// the CPU-side pointer once the buffer it backed has been replaced.
func (d *Device) retire(buf vk.Buffer, mem vk.DeviceMemory) {
	if len(d.retireRing) >= maxRetireRing {
		slog.Warn("vkbackend: retire ring full, forcing device wait", "queued", len(d.retireRing))
		d.WaitIdle()
		d.flushRetireRing(^uint64(0))
	}
	vk.UnmapMemory(d.Device, mem)
	d.retireRing = append(d.retireRing, retiredBuffer{
		buf:         buf,
		mem:         mem,
		retireAfter: d.frameIndex + retireDelayFrames,
	})
}

// BeginFrame records frameIndex as current and destroys any retired
// buffer whose delay has elapsed. A host calls this once per frame,
// ahead of rgraph.Graph.BeginFrame.
func (d *Device) BeginFrame(frameIndex uint64) {
	d.frameIndex = frameIndex
	d.flushRetireRing(frameIndex)
}

func (d *Device) flushRetireRing(frameIndex uint64) {
	due, pending := partitionRetireRing(d.retireRing, frameIndex)
	for _, r := range due {
		vk.DestroyBuffer(d.Device, r.buf, nil)
		vk.FreeMemory(d.Device, r.mem, nil)
	}
	d.retireRing = pending
}

// partitionRetireRing splits ring into entries due for destruction
// (retired strictly before frameIndex) and entries still within their
// K-frame grace period. Kept separate from flushRetireRing so the
// ring-accounting logic is testable without a real vk.Device.
func partitionRetireRing(ring []retiredBuffer, frameIndex uint64) (due, pending []retiredBuffer) {
	for _, r := range ring {
		if frameIndex > r.retireAfter {
			due = append(due, r)
		} else {
			pending = append(pending, r)
		}
	}
	return due, pending
}
