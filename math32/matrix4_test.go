// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package math32

import "testing"

func TestIdentity4Mul(t *testing.T) {
	id := Identity4()
	tr := Translation4(Vector3{1, 2, 3})
	got := tr.Mul(id)
	if got.X[12] != 1 || got.X[13] != 2 || got.X[14] != 3 {
		t.Fatalf("translation lost in identity mul: %v", got.X)
	}
}

func TestVector3Normal(t *testing.T) {
	v := Vector3{3, 4, 0}
	n := v.Normal()
	if Abs(n.Length()-1) > 1e-5 {
		t.Fatalf("expected unit length, got %v", n.Length())
	}
}
