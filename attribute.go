package meshreduce

import (
	"encoding/binary"
	"math"

	"github.com/playsaurus-inc/mesh-reduce/gltf"
)

// AttrArray is a tagged attribute buffer: component type x element type
// over tightly packed bytes. Every pipeline stage dispatches on the tag
// instead of guessing at buffer contents.
type AttrArray struct {
	Component  gltf.ComponentType
	ElemType   string
	Normalized bool
	Data       []byte
}

// NewFloatAttr packs float32 components into an F32-tagged array.
func NewFloatAttr(elemType string, vals []float32) AttrArray {
	data := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return AttrArray{Component: gltf.ComponentFloat, ElemType: elemType, Data: data}
}

// ElemSize is the packed byte width of one element.
func (a *AttrArray) ElemSize() int {
	return a.Component.Size() * gltf.ComponentCount(a.ElemType)
}

// Count is the number of elements.
func (a *AttrArray) Count() int {
	es := a.ElemSize()
	if es == 0 {
		return 0
	}
	return len(a.Data) / es
}

// Floats decodes an F32-tagged array. It returns nil for other tags; the
// pipeline only quantizes float attributes.
func (a *AttrArray) Floats() []float32 {
	if a.Component != gltf.ComponentFloat {
		return nil
	}
	out := make([]float32, len(a.Data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(a.Data[i*4:]))
	}
	return out
}

// Remap writes each old element into its new slot. Duplicates colliding
// on one slot carry identical data, so last-write-wins is safe.
func (a *AttrArray) Remap(remap []uint32, newCount int) AttrArray {
	es := a.ElemSize()
	out := AttrArray{Component: a.Component, ElemType: a.ElemType, Normalized: a.Normalized,
		Data: make([]byte, newCount*es)}
	for old := 0; old < a.Count() && old < len(remap); old++ {
		n := int(remap[old])
		if n < 0 || n >= newCount {
			continue
		}
		copy(out.Data[n*es:(n+1)*es], a.Data[old*es:(old+1)*es])
	}
	return out
}

// namedAttr pairs an attribute name with its buffer inside a working
// primitive.
type namedAttr struct {
	Name string
	Arr  AttrArray
}
