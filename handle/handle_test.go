// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package handle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableAllocReleaseReuseBumpsGeneration(t *testing.T) {
	var tab Table[string]
	h1 := tab.Alloc("first")
	require.True(t, h1.IsValid())

	tab.Free(h1)
	_, ok := tab.Get(h1)
	require.False(t, ok)

	h2 := tab.Alloc("second")
	require.Equal(t, h1.Id, h2.Id)
	require.Greater(t, h2.Generation, h1.Generation)

	// the stale handle must still fail to resolve even though the slot
	// is live again under a new generation.
	_, ok = tab.Get(h1)
	require.False(t, ok)

	v, ok := tab.Get(h2)
	require.True(t, ok)
	require.Equal(t, "second", v)
}

func TestInvalidHandle(t *testing.T) {
	require.False(t, Invalid.IsValid())
	var tab Table[int]
	_, ok := tab.Get(Invalid)
	require.False(t, ok)
}
