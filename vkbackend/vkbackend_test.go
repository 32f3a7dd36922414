// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vkbackend

import (
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/stretchr/testify/require"
)

// These exercise only the pure-Go helpers: anything touching an
// actual vk.Device/vk.PhysicalDevice needs a real GPU and an
// instance, which is vkrdemo's job, not a unit test's.

func TestVulkanFormatKnownNames(t *testing.T) {
	require.Equal(t, vk.FormatR8g8b8a8Unorm, vulkanFormat("rgba8_unorm"))
	require.Equal(t, vk.FormatB8g8r8a8Unorm, vulkanFormat("bgra8_unorm"))
	require.Equal(t, vk.FormatD32Sfloat, vulkanFormat("d32"))
}

func TestVulkanFormatUnknownFallsBackToSrgb(t *testing.T) {
	require.Equal(t, vk.FormatR8g8b8a8Srgb, vulkanFormat("made_up_format"))
}

func TestMax1ClampsZeroToOne(t *testing.T) {
	require.Equal(t, uint32(1), max1(0))
	require.Equal(t, uint32(4), max1(4))
}

// findMemoryType itself is not unit-tested here: it calls Deref() on
// cgo-backed vk.MemoryType entries that are only meaningfully
// populated by a real vkGetPhysicalDeviceMemoryProperties call, which
// needs an actual GPU/instance — see vkrdemo for the integration path.

// TestRetireRingDestroysAfterDelay exercises spec.md §8 scenario 6's UI
// text element: a vertex buffer grows four times across three frames,
// retiring its old backing buffer each time. The first retired buffer
// (from frame 0) must still be live through frame N+3 and destroyed
// only once the frame index advances past it; the buffer currently
// bound (never retired) must never appear in the "due" set.
func TestRetireRingDestroysAfterDelay(t *testing.T) {
	var ring []retiredBuffer
	retireAt := func(frame uint64) retiredBuffer {
		return retiredBuffer{buf: vk.Buffer(frame + 1), retireAfter: frame + retireDelayFrames}
	}

	// grows at frames 0, 1, 2; frame 3 is the currently bound buffer
	// and is never added to the ring.
	ring = append(ring, retireAt(0), retireAt(1), retireAt(2))

	due, pending := partitionRetireRing(ring, 3)
	require.Empty(t, due, "nothing should be due yet at frame 3")
	require.Len(t, pending, 3)

	due, pending = partitionRetireRing(ring, 4)
	require.Len(t, due, 1)
	require.Equal(t, vk.Buffer(1), due[0].buf, "the frame-0 retiree must be the first destroyed")
	require.Len(t, pending, 2)

	due, pending = partitionRetireRing(pending, 5)
	require.Len(t, due, 1)
	require.Equal(t, vk.Buffer(2), due[0].buf)
	require.Len(t, pending, 1)

	due, pending = partitionRetireRing(pending, 6)
	require.Len(t, due, 1)
	require.Equal(t, vk.Buffer(3), due[0].buf)
	require.Empty(t, pending)
}

func TestRetireRingLeavesBoundBufferUntouched(t *testing.T) {
	ring := []retiredBuffer{{buf: vk.Buffer(1), retireAfter: 3}}
	due, _ := partitionRetireRing(ring, 100)
	require.Len(t, due, 1)
	require.NotContains(t, due, retiredBuffer{buf: vk.Buffer(99)})
}
