package gltf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrUnsupportedComponentType reports an accessor componentType the
// pipeline cannot decode.
var ErrUnsupportedComponentType = errors.New("gltf: unsupported component type")

// AccessorData returns the raw bytes of accessor i, tightly packed. When
// the bufferView stride equals the element size the returned slice is a
// zero-copy view into Bin; otherwise elements are gather-copied.
func (a *Asset) AccessorData(i int) ([]byte, error) {
	if i < 0 || i >= len(a.Doc.Accessors) {
		return nil, fmt.Errorf("%w: accessor index %d", ErrAccessorOutOfRange, i)
	}
	acc := &a.Doc.Accessors[i]
	elem := acc.ElementSize()
	if acc.BufferView == nil {
		return make([]byte, acc.Count*elem), nil
	}
	bv := &a.Doc.BufferViews[*acc.BufferView]
	base := bv.ByteOffset + acc.ByteOffset

	stride := bv.ByteStride
	if stride == 0 || stride == elem {
		return a.Bin[base : base+acc.Count*elem], nil
	}

	// Interleaved layout: gather each element.
	out := make([]byte, acc.Count*elem)
	for e := 0; e < acc.Count; e++ {
		copy(out[e*elem:(e+1)*elem], a.Bin[base+e*stride:base+e*stride+elem])
	}
	return out, nil
}

// AccessorFloats decodes accessor i into float32 components. Integer
// component types are converted; normalized accessors are scaled into
// [-1,1] or [0,1] per the glTF normalization rules.
func (a *Asset) AccessorFloats(i int) ([]float32, error) {
	data, err := a.AccessorData(i)
	if err != nil {
		return nil, err
	}
	acc := &a.Doc.Accessors[i]
	n := acc.Count * ComponentCount(acc.Type)
	out := make([]float32, n)

	switch acc.ComponentType {
	case ComponentFloat:
		for c := 0; c < n; c++ {
			out[c] = math.Float32frombits(binary.LittleEndian.Uint32(data[c*4:]))
		}
	case ComponentByte:
		for c := 0; c < n; c++ {
			v := float32(int8(data[c]))
			if acc.Normalized {
				v = maxf(v/127, -1)
			}
			out[c] = v
		}
	case ComponentUnsignedByte:
		for c := 0; c < n; c++ {
			v := float32(data[c])
			if acc.Normalized {
				v /= 255
			}
			out[c] = v
		}
	case ComponentShort:
		for c := 0; c < n; c++ {
			v := float32(int16(binary.LittleEndian.Uint16(data[c*2:])))
			if acc.Normalized {
				v = maxf(v/32767, -1)
			}
			out[c] = v
		}
	case ComponentUnsignedShort:
		for c := 0; c < n; c++ {
			v := float32(binary.LittleEndian.Uint16(data[c*2:]))
			if acc.Normalized {
				v /= 65535
			}
			out[c] = v
		}
	case ComponentUnsignedInt:
		for c := 0; c < n; c++ {
			out[c] = float32(binary.LittleEndian.Uint32(data[c*4:]))
		}
	default:
		return nil, fmt.Errorf("%w: %d on accessor %d", ErrUnsupportedComponentType, acc.ComponentType, i)
	}
	return out, nil
}

// AccessorIndices decodes an index accessor, widening u8/u16 to u32 for
// internal use.
func (a *Asset) AccessorIndices(i int) ([]uint32, error) {
	data, err := a.AccessorData(i)
	if err != nil {
		return nil, err
	}
	acc := &a.Doc.Accessors[i]
	out := make([]uint32, acc.Count)
	switch acc.ComponentType {
	case ComponentUnsignedByte:
		for e := 0; e < acc.Count; e++ {
			out[e] = uint32(data[e])
		}
	case ComponentUnsignedShort:
		for e := 0; e < acc.Count; e++ {
			out[e] = uint32(binary.LittleEndian.Uint16(data[e*2:]))
		}
	case ComponentUnsignedInt:
		for e := 0; e < acc.Count; e++ {
			out[e] = binary.LittleEndian.Uint32(data[e*4:])
		}
	default:
		return nil, fmt.Errorf("%w: %d is not an index type (accessor %d)", ErrUnsupportedComponentType, acc.ComponentType, i)
	}
	return out, nil
}

// ImageData returns the raw bytes of a bufferView-backed image, or nil
// for URI images.
func (a *Asset) ImageData(i int) []byte {
	if i < 0 || i >= len(a.Doc.Images) {
		return nil
	}
	img := &a.Doc.Images[i]
	if img.BufferView == nil {
		return nil
	}
	bv := &a.Doc.BufferViews[*img.BufferView]
	return a.Bin[bv.ByteOffset : bv.ByteOffset+bv.ByteLength]
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
