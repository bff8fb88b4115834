package meshreduce

import (
	"fmt"
	"sort"

	"github.com/playsaurus-inc/mesh-reduce/gltf"
)

// primitiveSnapshot is a primitive after ingest, dedupe and cache
// reorder: the state every LOD ratio starts from. All float-semantics
// attributes are F32-tagged; everything else passes through natively.
type primitiveSnapshot struct {
	meshIndex   int
	primIndex   int
	material    *int
	mode        int
	indices     []uint32
	attrs       []namedAttr // POSITION first, remaining names sorted
	vertexCount int

	// importance filled in by the analyzers when texture-aware
	// optimization is on; nil otherwise.
	importance []float32
	seam       []bool
}

func (s *primitiveSnapshot) attr(name string) *AttrArray {
	for i := range s.attrs {
		if s.attrs[i].Name == name {
			return &s.attrs[i].Arr
		}
	}
	return nil
}

func (s *primitiveSnapshot) positions() []float32 {
	if a := s.attr(gltf.AttrPosition); a != nil {
		return a.Floats()
	}
	return nil
}

// texCoords returns the float UVs of TEXCOORD_<set>, or nil.
func (s *primitiveSnapshot) texCoords(set int) []float32 {
	if a := s.attr(fmt.Sprintf("TEXCOORD_%d", set)); a != nil {
		return a.Floats()
	}
	return nil
}

func (s *primitiveSnapshot) triangleCount() int {
	if s.mode != gltf.ModeTriangles {
		return 0
	}
	return len(s.indices) / 3
}

// floatSemantics reports whether an attribute is ingested as float and
// eligible for quantization.
func floatSemantics(name string) bool {
	switch name {
	case gltf.AttrPosition, gltf.AttrNormal, gltf.AttrTangent,
		gltf.AttrTexCoord0, gltf.AttrTexCoord1, gltf.AttrTexCoord2, gltf.AttrTexCoord3:
		return true
	}
	return false
}

func isTexCoord(name string) bool {
	switch name {
	case gltf.AttrTexCoord0, gltf.AttrTexCoord1, gltf.AttrTexCoord2, gltf.AttrTexCoord3:
		return true
	}
	return false
}

// ingestPrimitive loads a primitive's attributes and indices into the
// working representation. Missing indices synthesize the identity list.
func ingestPrimitive(asset *gltf.Asset, ref gltf.PrimitiveRef) (*primitiveSnapshot, error) {
	prim := ref.Prim
	posAccessor, ok := prim.Attributes[gltf.AttrPosition]
	if !ok {
		return nil, &PrimitiveError{MeshIndex: ref.MeshIndex, PrimIndex: ref.PrimIndex, Err: ErrMissingPosition}
	}
	if posAccessor < 0 || posAccessor >= len(asset.Doc.Accessors) {
		return nil, &PrimitiveError{MeshIndex: ref.MeshIndex, PrimIndex: ref.PrimIndex, Err: gltf.ErrAccessorOutOfRange}
	}
	vertexCount := asset.Doc.Accessors[posAccessor].Count

	names := make([]string, 0, len(prim.Attributes))
	for name := range prim.Attributes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if (names[i] == gltf.AttrPosition) != (names[j] == gltf.AttrPosition) {
			return names[i] == gltf.AttrPosition
		}
		return names[i] < names[j]
	})

	snap := &primitiveSnapshot{
		meshIndex:   ref.MeshIndex,
		primIndex:   ref.PrimIndex,
		material:    prim.Material,
		mode:        prim.ModeOrDefault(),
		vertexCount: vertexCount,
	}

	for _, name := range names {
		ai := prim.Attributes[name]
		if ai < 0 || ai >= len(asset.Doc.Accessors) {
			return nil, &PrimitiveError{MeshIndex: ref.MeshIndex, PrimIndex: ref.PrimIndex,
				Err: fmt.Errorf("%w: attribute %s", gltf.ErrAccessorOutOfRange, name)}
		}
		acc := &asset.Doc.Accessors[ai]
		if acc.Count != vertexCount {
			return nil, &PrimitiveError{MeshIndex: ref.MeshIndex, PrimIndex: ref.PrimIndex,
				Err: fmt.Errorf("%w: %s has %d elements, POSITION has %d", ErrAttributeCount, name, acc.Count, vertexCount)}
		}

		var arr AttrArray
		if floatSemantics(name) {
			vals, err := asset.AccessorFloats(ai)
			if err != nil {
				return nil, &PrimitiveError{MeshIndex: ref.MeshIndex, PrimIndex: ref.PrimIndex, Err: err}
			}
			arr = NewFloatAttr(acc.Type, vals)
		} else {
			data, err := asset.AccessorData(ai)
			if err != nil {
				return nil, &PrimitiveError{MeshIndex: ref.MeshIndex, PrimIndex: ref.PrimIndex, Err: err}
			}
			arr = AttrArray{
				Component:  acc.ComponentType,
				ElemType:   acc.Type,
				Normalized: acc.Normalized,
				Data:       append([]byte(nil), data...),
			}
		}
		snap.attrs = append(snap.attrs, namedAttr{Name: name, Arr: arr})
	}

	if prim.Indices != nil {
		indices, err := asset.AccessorIndices(*prim.Indices)
		if err != nil {
			return nil, &PrimitiveError{MeshIndex: ref.MeshIndex, PrimIndex: ref.PrimIndex, Err: err}
		}
		snap.indices = indices
	} else {
		snap.indices = make([]uint32, vertexCount)
		for i := range snap.indices {
			snap.indices[i] = uint32(i)
		}
	}
	return snap, nil
}

// interleaveAttrs packs every attribute of a vertex into one record, the
// dedupe key.
func (s *primitiveSnapshot) interleaveAttrs() ([]byte, int) {
	stride := 0
	for i := range s.attrs {
		stride += s.attrs[i].Arr.ElemSize()
	}
	out := make([]byte, s.vertexCount*stride)
	offset := 0
	for i := range s.attrs {
		es := s.attrs[i].Arr.ElemSize()
		data := s.attrs[i].Arr.Data
		for v := 0; v < s.vertexCount; v++ {
			copy(out[v*stride+offset:], data[v*es:(v+1)*es])
		}
		offset += es
	}
	return out, stride
}

// applyRemap rewrites attributes and indices through an old-to-new remap
// with newCount live slots.
func (s *primitiveSnapshot) applyRemap(remap []uint32, newCount int) {
	for i := range s.attrs {
		s.attrs[i].Arr = s.attrs[i].Arr.Remap(remap, newCount)
	}
	for i, idx := range s.indices {
		s.indices[i] = remap[idx]
	}
	s.vertexCount = newCount
}

// dedupe runs the Compact capability over the interleaved vertex records.
func (s *primitiveSnapshot) dedupe(sim Simplifier) {
	if len(s.indices) == 0 {
		return
	}
	data, stride := s.interleaveAttrs()
	remap, unique := sim.Compact(s.indices, s.vertexCount, data, stride)
	s.applyRemap(remap, unique)
}

// reorder runs the cache-friendly triangle reorder; identity for
// non-triangle modes and for primitives with no triangles.
func (s *primitiveSnapshot) reorder(sim Simplifier) {
	if s.mode != gltf.ModeTriangles || len(s.indices) < 3 {
		return
	}
	newIndices, remap := sim.Reorder(s.indices, s.vertexCount)
	newCount := 0
	for _, idx := range newIndices {
		if int(idx)+1 > newCount {
			newCount = int(idx) + 1
		}
	}
	for i := range s.attrs {
		s.attrs[i].Arr = s.attrs[i].Arr.Remap(remap, newCount)
	}
	s.indices = newIndices
	s.vertexCount = newCount
}

// clone deep-copies the parts the per-LOD stages mutate.
func (s *primitiveSnapshot) clone() *primitiveSnapshot {
	out := &primitiveSnapshot{
		meshIndex:   s.meshIndex,
		primIndex:   s.primIndex,
		material:    s.material,
		mode:        s.mode,
		indices:     append([]uint32(nil), s.indices...),
		vertexCount: s.vertexCount,
		importance:  s.importance,
		seam:        s.seam,
	}
	out.attrs = make([]namedAttr, len(s.attrs))
	for i := range s.attrs {
		out.attrs[i] = namedAttr{
			Name: s.attrs[i].Name,
			Arr: AttrArray{
				Component:  s.attrs[i].Arr.Component,
				ElemType:   s.attrs[i].Arr.ElemType,
				Normalized: s.attrs[i].Arr.Normalized,
				Data:       append([]byte(nil), s.attrs[i].Arr.Data...),
			},
		}
	}
	return out
}

// OptimizedPrimitive is the pipeline's output for one primitive: final
// attribute buffers, u32 indices and the POSITION de-quantization affine
// when positions were quantized.
type OptimizedPrimitive struct {
	MeshIndex int
	PrimIndex int
	Material  *int
	Mode      int

	Indices        []uint32
	IndexComponent gltf.ComponentType

	Attrs []namedAttr

	PosAffine *DequantAffine
	PosMin    []float32
	PosMax    []float32

	// UVRanges records extended-range UV normalization per TEXCOORD set
	// name; the writer does not compensate materials for it.
	UVRanges map[string]*UVRange

	VertexCount int
}

// Triangles is the triangle count of the optimized primitive.
func (p *OptimizedPrimitive) Triangles() int {
	if p.Mode != gltf.ModeTriangles {
		return 0
	}
	return len(p.Indices) / 3
}

// finishPrimitive runs the per-LOD stages on a snapshot clone: quantization and
// index width selection. Simplification has already happened.
func finishPrimitive(snap *primitiveSnapshot, opts *Options) *OptimizedPrimitive {
	out := &OptimizedPrimitive{
		MeshIndex:   snap.meshIndex,
		PrimIndex:   snap.primIndex,
		Material:    snap.material,
		Mode:        snap.mode,
		Indices:     snap.indices,
		VertexCount: snap.vertexCount,
	}

	for i := range snap.attrs {
		name := snap.attrs[i].Name
		arr := snap.attrs[i].Arr

		switch {
		case name == gltf.AttrPosition && opts.QuantizePositions && arr.Component == gltf.ComponentFloat:
			qp := QuantizePositions(arr.Floats(), opts.PositionBits)
			out.Attrs = append(out.Attrs, namedAttr{Name: name, Arr: qp.Arr})
			out.PosAffine = &qp.Affine
			out.PosMin = qp.Min
			out.PosMax = qp.Max
		case name == gltf.AttrNormal && opts.QuantizeNormals && arr.Component == gltf.ComponentFloat:
			out.Attrs = append(out.Attrs, namedAttr{Name: name, Arr: QuantizeNormals(arr.Floats())})
		case name == gltf.AttrTangent && opts.QuantizeTangents && arr.Component == gltf.ComponentFloat:
			out.Attrs = append(out.Attrs, namedAttr{Name: name, Arr: QuantizeTangents(arr.Floats())})
		case isTexCoord(name) && opts.QuantizeUVs && arr.Component == gltf.ComponentFloat:
			qArr, rng := QuantizeUVs(arr.Floats())
			out.Attrs = append(out.Attrs, namedAttr{Name: name, Arr: qArr})
			if rng != nil {
				if out.UVRanges == nil {
					out.UVRanges = make(map[string]*UVRange)
				}
				out.UVRanges[name] = rng
			}
		default:
			out.Attrs = append(out.Attrs, namedAttr{Name: name, Arr: arr})
		}
	}

	switch {
	case snap.vertexCount <= 0xFF:
		out.IndexComponent = gltf.ComponentUnsignedByte
	case snap.vertexCount <= 0xFFFF:
		out.IndexComponent = gltf.ComponentUnsignedShort
	default:
		out.IndexComponent = gltf.ComponentUnsignedInt
	}
	return out
}
