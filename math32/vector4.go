// Copyright (c) 2022, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package math32

// Vector4 is a 4D vector with float32 components. It backs the Phong
// diffuse/specular/emission color uniforms, which are RGBA.
type Vector4 struct {
	X, Y, Z, W float32
}

func NewVector4(x, y, z, w float32) Vector4 { return Vector4{x, y, z, w} }

// RGBA constructs a Vector4 from color channels, all in [0,1].
func RGBA(r, g, b, a float32) Vector4 { return Vector4{r, g, b, a} }

func (v Vector4) Vector3() Vector3 { return Vector3{v.X, v.Y, v.Z} }

func (v Vector4) Add(o Vector4) Vector4 {
	return Vector4{v.X + o.X, v.Y + o.Y, v.Z + o.Z, v.W + o.W}
}

func (v Vector4) MulScalar(s float32) Vector4 {
	return Vector4{v.X * s, v.Y * s, v.Z * s, v.W * s}
}

func (v Vector4) Array() [4]float32 { return [4]float32{v.X, v.Y, v.Z, v.W} }
