package meshreduce

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/playsaurus-inc/mesh-reduce/gltf"
)

// DequantAffine reconstructs a quantized coordinate: p = Scale*q + Center
// componentwise.
type DequantAffine struct {
	Scale  mgl32.Vec3
	Center mgl32.Vec3
}

// QuantizedPositions is the integer position stream plus everything the
// writer needs: the de-quantization affine and the symmetric accessor
// bounds.
type QuantizedPositions struct {
	Arr    AttrArray
	Affine DequantAffine
	Min    []float32
	Max    []float32
}

// UVRange records the offset/scale applied to out-of-range UVs before
// quantization: uv = Offset + Scale*u16/65535. The default writer does
// not rewrite material texture transforms to compensate; the range is
// surfaced so callers can.
type UVRange struct {
	Offset [2]float32
	Scale  [2]float32
}

// QuantizePositions maps float positions onto a symmetric signed grid.
// bits is 8 or 16. Axes with zero extent keep scale 1 so the constant
// coordinate round-trips exactly.
func QuantizePositions(pos []float32, bits int) QuantizedPositions {
	maxValue := float32(32767)
	component := gltf.ComponentShort
	if bits == 8 {
		maxValue = 127
		component = gltf.ComponentByte
	}
	count := len(pos) / 3

	var bbMin, bbMax mgl32.Vec3
	for axis := 0; axis < 3; axis++ {
		bbMin[axis] = float32(math.Inf(1))
		bbMax[axis] = float32(math.Inf(-1))
	}
	for v := 0; v < count; v++ {
		for axis := 0; axis < 3; axis++ {
			p := pos[v*3+axis]
			if p < bbMin[axis] {
				bbMin[axis] = p
			}
			if p > bbMax[axis] {
				bbMax[axis] = p
			}
		}
	}
	if count == 0 {
		bbMin = mgl32.Vec3{}
		bbMax = mgl32.Vec3{}
	}

	var scale, center mgl32.Vec3
	for axis := 0; axis < 3; axis++ {
		center[axis] = (bbMin[axis] + bbMax[axis]) / 2
		extent := bbMax[axis] - bbMin[axis]
		if extent > 0 {
			scale[axis] = extent / (2 * maxValue)
		} else {
			scale[axis] = 1
		}
	}

	elemSize := 3 * component.Size()
	data := make([]byte, count*elemSize)
	for v := 0; v < count; v++ {
		for axis := 0; axis < 3; axis++ {
			q := roundClamp((pos[v*3+axis]-center[axis])/scale[axis], -maxValue, maxValue)
			if bits == 8 {
				data[v*3+axis] = byte(int8(q))
			} else {
				binary.LittleEndian.PutUint16(data[(v*3+axis)*2:], uint16(int16(q)))
			}
		}
	}

	return QuantizedPositions{
		Arr:    AttrArray{Component: component, ElemType: gltf.TypeVec3, Data: data},
		Affine: DequantAffine{Scale: scale, Center: center},
		Min:    []float32{-maxValue, -maxValue, -maxValue},
		Max:    []float32{maxValue, maxValue, maxValue},
	}
}

// QuantizeNormals packs unit normals as normalized int8 vec3. Inputs are
// renormalized first; zero-length normals quantize to zero.
func QuantizeNormals(normals []float32) AttrArray {
	count := len(normals) / 3
	data := make([]byte, count*3)
	for v := 0; v < count; v++ {
		n := mgl32.Vec3{normals[v*3], normals[v*3+1], normals[v*3+2]}
		if l := n.Len(); l > 0 {
			n = n.Mul(1 / l)
		}
		for axis := 0; axis < 3; axis++ {
			data[v*3+axis] = byte(int8(roundClamp(n[axis]*127, -127, 127)))
		}
	}
	return AttrArray{Component: gltf.ComponentByte, ElemType: gltf.TypeVec3, Normalized: true, Data: data}
}

// QuantizeUVs packs texture coordinates as normalized uint16. UVs inside
// [0,1] take the direct path; otherwise they are offset/scaled into [0,1]
// first and the applied range is returned.
func QuantizeUVs(uvs []float32) (AttrArray, *UVRange) {
	count := len(uvs) / 2

	inRange := true
	for _, u := range uvs {
		if u < 0 || u > 1 {
			inRange = false
			break
		}
	}

	var rng *UVRange
	offset := [2]float32{0, 0}
	scale := [2]float32{1, 1}
	if !inRange {
		min := [2]float32{float32(math.Inf(1)), float32(math.Inf(1))}
		max := [2]float32{float32(math.Inf(-1)), float32(math.Inf(-1))}
		for v := 0; v < count; v++ {
			for c := 0; c < 2; c++ {
				u := uvs[v*2+c]
				if u < min[c] {
					min[c] = u
				}
				if u > max[c] {
					max[c] = u
				}
			}
		}
		for c := 0; c < 2; c++ {
			offset[c] = min[c]
			if ext := max[c] - min[c]; ext > 0 {
				scale[c] = ext
			}
		}
		rng = &UVRange{Offset: offset, Scale: scale}
	}

	data := make([]byte, count*4)
	for v := 0; v < count; v++ {
		for c := 0; c < 2; c++ {
			u := (uvs[v*2+c] - offset[c]) / scale[c]
			q := roundClamp(u*65535, 0, 65535)
			binary.LittleEndian.PutUint16(data[(v*2+c)*2:], uint16(q))
		}
	}
	return AttrArray{Component: gltf.ComponentUnsignedShort, ElemType: gltf.TypeVec2, Normalized: true, Data: data}, rng
}

// QuantizeTangents packs tangents as normalized int8 vec4; xyz like
// normals, w snapped to +-127 to preserve handedness.
func QuantizeTangents(tangents []float32) AttrArray {
	count := len(tangents) / 4
	data := make([]byte, count*4)
	for v := 0; v < count; v++ {
		xyz := mgl32.Vec3{tangents[v*4], tangents[v*4+1], tangents[v*4+2]}
		if l := xyz.Len(); l > 0 {
			xyz = xyz.Mul(1 / l)
		}
		for axis := 0; axis < 3; axis++ {
			data[v*4+axis] = byte(int8(roundClamp(xyz[axis]*127, -127, 127)))
		}
		w := int8(127)
		if tangents[v*4+3] < 0 {
			w = -127
		}
		data[v*4+3] = byte(w)
	}
	return AttrArray{Component: gltf.ComponentByte, ElemType: gltf.TypeVec4, Normalized: true, Data: data}
}

func roundClamp(v, lo, hi float32) float32 {
	r := float32(math.Round(float64(v)))
	if r < lo {
		return lo
	}
	if r > hi {
		return hi
	}
	return r
}
