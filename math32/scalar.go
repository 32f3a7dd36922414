// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package math32 provides the float32 vector and matrix types used
// throughout the renderer: view/projection matrices for the material
// system and view layers, and color/position vectors for Phong
// uniforms. Scalar trig and root functions are delegated to
// [github.com/chewxy/math32] rather than the float64 standard library,
// since everything here stays in float32 to match GPU uniform layouts.
package math32

import cmath32 "github.com/chewxy/math32"

const (
	Pi      = cmath32.Pi
	DegToRad = Pi / 180
	RadToDeg = 180 / Pi
)

func Sin(x float32) float32  { return cmath32.Sin(x) }
func Cos(x float32) float32  { return cmath32.Cos(x) }
func Tan(x float32) float32  { return cmath32.Tan(x) }
func Sqrt(x float32) float32 { return cmath32.Sqrt(x) }

func Abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func Max(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func Min(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

// Clamp restricts x to the closed interval [lo, hi].
func Clamp(x, lo, hi float32) float32 {
	return Max(lo, Min(hi, x))
}
