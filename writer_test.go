package meshreduce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playsaurus-inc/mesh-reduce/gltf"
)

// animatedAsset builds a single-triangle asset with one animation
// (translation channel) and one skin with inverse bind matrices.
func animatedAsset(t *testing.T) *gltf.Asset {
	ta := &testAsset{
		positions: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		indices:   []uint32{0, 1, 2},
	}
	glb := ta.build(t)
	asset := parseTestAsset(t, glb)
	doc := &asset.Doc

	bin := append([]byte(nil), asset.Bin...)
	addAccessor := func(data []byte, component gltf.ComponentType, elemType string, count int) int {
		for len(bin)%4 != 0 {
			bin = append(bin, 0)
		}
		offset := len(bin)
		bin = append(bin, data...)
		doc.BufferViews = append(doc.BufferViews, gltf.BufferView{
			Buffer: 0, ByteOffset: offset, ByteLength: len(data),
		})
		view := len(doc.BufferViews) - 1
		doc.Accessors = append(doc.Accessors, gltf.Accessor{
			BufferView: &view, ComponentType: component, Count: count, Type: elemType,
		})
		return len(doc.Accessors) - 1
	}

	times := addAccessor(packFloats([]float32{0, 1}), gltf.ComponentFloat, gltf.TypeScalar, 2)
	values := addAccessor(packFloats([]float32{0, 0, 0, 1, 2, 3}), gltf.ComponentFloat, gltf.TypeVec3, 2)
	node := 0
	doc.Animations = []gltf.Animation{{
		Name: "move",
		Samplers: []gltf.AnimationSampler{{
			Input: times, Output: values, Interpolation: "LINEAR",
		}},
		Channels: []gltf.AnimationChannel{{
			Sampler: 0,
			Target:  gltf.AnimationChannelTarget{Node: &node, Path: "translation"},
		}},
	}}

	identity := make([]float32, 16)
	identity[0], identity[5], identity[10], identity[15] = 1, 1, 1, 1
	ibm := addAccessor(packFloats(identity), gltf.ComponentFloat, gltf.TypeMat4, 1)
	doc.Skins = []gltf.Skin{{InverseBindMatrices: &ibm, Joints: []int{0}}}

	doc.Buffers[0].ByteLength = len(bin)
	out, err := gltf.EncodeGLB(doc, bin)
	require.NoError(t, err)
	return parseTestAsset(t, out)
}

func TestWriterCarriesAnimationsAndSkins(t *testing.T) {
	asset := animatedAsset(t)

	opts := DefaultOptions()
	opts.MeshoptCompression = false

	result, err := Optimize(context.Background(), asset, opts)
	require.NoError(t, err)

	out := parseTestAsset(t, result.Output)
	require.Len(t, out.Doc.Animations, 1)
	require.Len(t, out.Doc.Skins, 1)

	anim := &out.Doc.Animations[0]
	assert.Equal(t, "move", anim.Name)
	require.Len(t, anim.Samplers, 1)
	assert.Equal(t, "LINEAR", anim.Samplers[0].Interpolation)

	// Keyframe times survive the accessor remap byte for byte.
	times, err := out.AccessorFloats(anim.Samplers[0].Input)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, times)

	values, err := out.AccessorFloats(anim.Samplers[0].Output)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 1, 2, 3}, values)

	skin := &out.Doc.Skins[0]
	require.NotNil(t, skin.InverseBindMatrices)
	ibm, err := out.AccessorFloats(*skin.InverseBindMatrices)
	require.NoError(t, err)
	require.Len(t, ibm, 16)
	assert.Equal(t, float32(1), ibm[0])
	assert.Equal(t, []int{0}, skin.Joints)
}

func TestWriterSharedSamplerAccessorCopiedOnce(t *testing.T) {
	asset := animatedAsset(t)
	// Point a second sampler at the same input accessor.
	anim := &asset.Doc.Animations[0]
	anim.Samplers = append(anim.Samplers, anim.Samplers[0])
	anim.Channels = append(anim.Channels, anim.Channels[0])

	opts := DefaultOptions()
	opts.MeshoptCompression = false

	result, err := Optimize(context.Background(), asset, opts)
	require.NoError(t, err)

	out := parseTestAsset(t, result.Output)
	samplers := out.Doc.Animations[0].Samplers
	require.Len(t, samplers, 2)
	assert.Equal(t, samplers[0].Input, samplers[1].Input,
		"shared accessors stay shared through the remap")
}

func TestWriterImagePassthrough(t *testing.T) {
	glb := texturedQuad(t)
	asset := parseTestAsset(t, glb)

	opts := DefaultOptions()
	opts.MeshoptCompression = false
	opts.ImageCodec = &stubImageCodec{w: 8, h: 8}

	result, err := Optimize(context.Background(), asset, opts)
	require.NoError(t, err)

	out := parseTestAsset(t, result.Output)
	require.Len(t, out.Doc.Images, 1)
	require.NotNil(t, out.Doc.Images[0].BufferView)

	// The copied image view carries the original bytes.
	want := asset.ImageData(0)
	got := out.ImageData(0)
	assert.Equal(t, want, got)
}

func TestWriterStateRegressionPanics(t *testing.T) {
	opts := DefaultOptions()
	oc := newOptimizeContext(context.Background(), &gltf.Asset{}, opts)
	w := newWriter(oc)
	w.advance(stateImages)
	assert.Panics(t, func() { w.advance(stateGeometry) })
}

func TestApplyAffineToNodeDefaults(t *testing.T) {
	node := &gltf.Node{}
	affine := &DequantAffine{
		Scale:  [3]float32{2, 2, 2},
		Center: [3]float32{1, 0, -1},
	}
	applyAffineToNode(node, affine)
	assert.Equal(t, []float32{2, 2, 2}, node.Scale)
	assert.Equal(t, []float32{1, 0, -1}, node.Translation)
}

func TestApplyAffineToNodeMatrix(t *testing.T) {
	node := &gltf.Node{Matrix: []float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}}
	affine := &DequantAffine{
		Scale:  [3]float32{0.5, 0.5, 0.5},
		Center: [3]float32{1, 2, 3},
	}
	applyAffineToNode(node, affine)
	require.Len(t, node.Matrix, 16)
	// Column-major: scale on the diagonal, translation in column 3.
	assert.Equal(t, float32(0.5), node.Matrix[0])
	assert.Equal(t, float32(0.5), node.Matrix[5])
	assert.Equal(t, float32(0.5), node.Matrix[10])
	assert.Equal(t, float32(1), node.Matrix[12])
	assert.Equal(t, float32(2), node.Matrix[13])
	assert.Equal(t, float32(3), node.Matrix[14])
}
