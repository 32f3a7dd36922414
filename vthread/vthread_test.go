// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vthread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestU64SaturatingSub(t *testing.T) {
	var u U64
	u.Store(10, SeqCst)
	got := u.SaturatingSub(20, SeqCst)
	require.EqualValues(t, 0, got)
	require.EqualValues(t, 0, u.Load(SeqCst))
}

func TestRaisePeak(t *testing.T) {
	var peak U64
	RaisePeak(&peak, 5)
	RaisePeak(&peak, 3)
	RaisePeak(&peak, 9)
	require.EqualValues(t, 9, peak.Load(SeqCst))
}

func TestThreadCooperativeCancel(t *testing.T) {
	th := Create(func(self *Thread) {
		for !self.Cancelled() {
			time.Sleep(time.Millisecond)
		}
	})
	require.True(t, th.IsActive())
	th.Cancel()
	th.Join()
	require.False(t, th.IsActive())
}
