package meshreduce

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playsaurus-inc/mesh-reduce/gltf"
	"github.com/playsaurus-inc/mesh-reduce/simplifier"
)

// testAsset assembles a single-mesh GLB from raw vertex data. Pass nil
// indices for a non-indexed primitive.
type testAsset struct {
	positions []float32
	normals   []float32
	uvs       []float32
	indices   []uint32
	material  *int
	mode      *int

	doc gltf.Document
	bin []byte
}

func (ta *testAsset) appendAccessor(t *testing.T, data []byte, component gltf.ComponentType, elemType string, count int) int {
	t.Helper()
	for len(ta.bin)%4 != 0 {
		ta.bin = append(ta.bin, 0)
	}
	offset := len(ta.bin)
	ta.bin = append(ta.bin, data...)
	ta.doc.BufferViews = append(ta.doc.BufferViews, gltf.BufferView{
		Buffer: 0, ByteOffset: offset, ByteLength: len(data),
	})
	view := len(ta.doc.BufferViews) - 1
	ta.doc.Accessors = append(ta.doc.Accessors, gltf.Accessor{
		BufferView: &view, ComponentType: component, Count: count, Type: elemType,
	})
	return len(ta.doc.Accessors) - 1
}

func packFloats(vals []float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func packU32(vals []uint32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

// build produces the GLB bytes; the asset gets one mesh, one node
// referencing it, and one scene.
func (ta *testAsset) build(t *testing.T) []byte {
	t.Helper()
	ta.doc = gltf.Document{Asset: gltf.AssetInfo{Version: "2.0"}}
	ta.bin = nil

	prim := gltf.Primitive{Attributes: map[string]int{}, Material: ta.material, Mode: ta.mode}
	vertexCount := len(ta.positions) / 3
	prim.Attributes[gltf.AttrPosition] = ta.appendAccessor(t, packFloats(ta.positions), gltf.ComponentFloat, gltf.TypeVec3, vertexCount)
	if ta.normals != nil {
		prim.Attributes[gltf.AttrNormal] = ta.appendAccessor(t, packFloats(ta.normals), gltf.ComponentFloat, gltf.TypeVec3, vertexCount)
	}
	if ta.uvs != nil {
		prim.Attributes[gltf.AttrTexCoord0] = ta.appendAccessor(t, packFloats(ta.uvs), gltf.ComponentFloat, gltf.TypeVec2, vertexCount)
	}
	if ta.indices != nil {
		idx := ta.appendAccessor(t, packU32(ta.indices), gltf.ComponentUnsignedInt, gltf.TypeScalar, len(ta.indices))
		prim.Indices = &idx
	}

	ta.doc.Meshes = []gltf.Mesh{{Primitives: []gltf.Primitive{prim}}}
	mesh := 0
	ta.doc.Nodes = []gltf.Node{{Mesh: &mesh}}
	ta.doc.Scenes = json.RawMessage(`[{"nodes":[0]}]`)
	ta.doc.Buffers = []gltf.Buffer{{ByteLength: len(ta.bin)}}

	glb, err := gltf.EncodeGLB(&ta.doc, ta.bin)
	require.NoError(t, err)
	return glb
}

func parseTestAsset(t *testing.T, glb []byte) *gltf.Asset {
	t.Helper()
	asset, err := gltf.Parse(glb)
	require.NoError(t, err)
	return asset
}

func TestIngestMissingPosition(t *testing.T) {
	doc := gltf.Document{
		Asset:  gltf.AssetInfo{Version: "2.0"},
		Meshes: []gltf.Mesh{{Primitives: []gltf.Primitive{{Attributes: map[string]int{}}}}},
	}
	glb, err := gltf.EncodeGLB(&doc, nil)
	require.NoError(t, err)
	asset := parseTestAsset(t, glb)

	_, err = ingestPrimitive(asset, asset.Primitives()[0])
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingPosition)

	var perr *PrimitiveError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 0, perr.MeshIndex)
}

func TestIngestSynthesizesIndices(t *testing.T) {
	ta := &testAsset{positions: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}}
	asset := parseTestAsset(t, ta.build(t))

	snap, err := ingestPrimitive(asset, asset.Primitives()[0])
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2}, snap.indices)
}

func TestIngestRejectsMismatchedAttributeCount(t *testing.T) {
	ta := &testAsset{positions: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}}
	glb := ta.build(t)
	asset := parseTestAsset(t, glb)
	// Splice in a 2-element normal accessor.
	view := 0
	asset.Doc.Accessors = append(asset.Doc.Accessors, gltf.Accessor{
		BufferView: &view, ComponentType: gltf.ComponentFloat, Count: 2, Type: gltf.TypeVec3,
	})
	asset.Doc.Meshes[0].Primitives[0].Attributes[gltf.AttrNormal] = len(asset.Doc.Accessors) - 1

	_, err := ingestPrimitive(asset, asset.Primitives()[0])
	assert.ErrorIs(t, err, ErrAttributeCount)
}

func TestDedupeKeepsAttributeCountsAligned(t *testing.T) {
	ta := &testAsset{
		positions: []float32{
			0, 0, 0, 1, 0, 0, 0, 1, 0,
			0, 0, 0, 1, 0, 0, 0, 1, 0,
		},
		uvs: []float32{
			0, 0, 1, 0, 0, 1,
			0, 0, 1, 0, 0, 1,
		},
		indices: []uint32{0, 1, 2, 3, 4, 5},
	}
	asset := parseTestAsset(t, ta.build(t))
	snap, err := ingestPrimitive(asset, asset.Primitives()[0])
	require.NoError(t, err)

	snap.dedupe(simplifier.New())
	assert.Equal(t, 3, snap.vertexCount)
	for _, attr := range snap.attrs {
		assert.Equal(t, 3, attr.Arr.Count(), "attribute %s", attr.Name)
	}
	maxIdx := uint32(0)
	for _, idx := range snap.indices {
		if idx > maxIdx {
			maxIdx = idx
		}
	}
	assert.Equal(t, snap.vertexCount, int(maxIdx)+1)
}

func TestFinishPrimitiveIndexWidth(t *testing.T) {
	opts := DefaultOptions()
	opts.QuantizePositions = false
	opts.QuantizeNormals = false
	opts.QuantizeUVs = false
	opts.QuantizeTangents = false

	small := &primitiveSnapshot{
		mode:        gltf.ModeTriangles,
		indices:     []uint32{0, 1, 2},
		vertexCount: 3,
		attrs: []namedAttr{{Name: gltf.AttrPosition,
			Arr: NewFloatAttr(gltf.TypeVec3, make([]float32, 9))}},
	}
	prim := finishPrimitive(small, &opts)
	assert.Equal(t, gltf.ComponentUnsignedByte, prim.IndexComponent)

	big := &primitiveSnapshot{
		mode:        gltf.ModeTriangles,
		indices:     []uint32{0, 1, 2},
		vertexCount: 70000,
		attrs: []namedAttr{{Name: gltf.AttrPosition,
			Arr: NewFloatAttr(gltf.TypeVec3, make([]float32, 210000))}},
	}
	prim = finishPrimitive(big, &opts)
	assert.Equal(t, gltf.ComponentUnsignedInt, prim.IndexComponent)
}

func TestFinishPrimitiveQuantizesEachAttribute(t *testing.T) {
	opts := DefaultOptions()
	snap := &primitiveSnapshot{
		mode:        gltf.ModeTriangles,
		indices:     []uint32{0, 1, 2},
		vertexCount: 3,
		attrs: []namedAttr{
			{Name: gltf.AttrPosition, Arr: NewFloatAttr(gltf.TypeVec3, []float32{0, 0, 0, 1, 0, 0, 0, 1, 0})},
			{Name: gltf.AttrNormal, Arr: NewFloatAttr(gltf.TypeVec3, []float32{0, 0, 1, 0, 0, 1, 0, 0, 1})},
			{Name: gltf.AttrTexCoord0, Arr: NewFloatAttr(gltf.TypeVec2, []float32{0, 0, 1, 0, 0, 1})},
		},
	}
	prim := finishPrimitive(snap, &opts)
	require.NotNil(t, prim.PosAffine)

	byName := map[string]*AttrArray{}
	for i := range prim.Attrs {
		byName[prim.Attrs[i].Name] = &prim.Attrs[i].Arr
	}
	assert.Equal(t, gltf.ComponentShort, byName[gltf.AttrPosition].Component)
	assert.Equal(t, gltf.ComponentByte, byName[gltf.AttrNormal].Component)
	assert.Equal(t, gltf.ComponentUnsignedShort, byName[gltf.AttrTexCoord0].Component)

	// Every attribute still has one element per vertex.
	for name, arr := range byName {
		assert.Equal(t, prim.VertexCount, arr.Count(), "attribute %s", name)
	}
}

func TestFinishPrimitiveMissingAttributesSkipped(t *testing.T) {
	opts := DefaultOptions()
	snap := &primitiveSnapshot{
		mode:        gltf.ModeTriangles,
		indices:     []uint32{0, 1, 2},
		vertexCount: 3,
		attrs: []namedAttr{
			{Name: gltf.AttrPosition, Arr: NewFloatAttr(gltf.TypeVec3, []float32{0, 0, 0, 1, 0, 0, 0, 1, 0})},
		},
	}
	prim := finishPrimitive(snap, &opts)
	require.Len(t, prim.Attrs, 1)
	assert.Nil(t, prim.UVRanges)
}
