package meshreduce

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playsaurus-inc/mesh-reduce/gltf"
)

// stubImageCodec serves a synthetic image without touching any encoder:
// left half dark, right half bright, giving a strong vertical edge down
// the middle.
type stubImageCodec struct {
	w, h int
}

func (s *stubImageCodec) Decode(data []byte, mime string) (*ImageData, error) {
	rgba := make([]byte, s.w*s.h*4)
	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {
			v := byte(0)
			if x >= s.w/2 {
				v = 255
			}
			i := (y*s.w + x) * 4
			rgba[i], rgba[i+1], rgba[i+2], rgba[i+3] = v, v, v, 255
		}
	}
	return &ImageData{Width: s.w, Height: s.h, RGBA: rgba}, nil
}

func (s *stubImageCodec) Resize(data []byte, mime string, scale float32) (*EncodedImage, error) {
	return &EncodedImage{Data: data, Width: s.w, Height: s.h}, nil
}

func (s *stubImageCodec) Dimensions(data []byte, mime string) (int, int, error) {
	return s.w, s.h, nil
}

// texturedQuad builds an asset with one textured quad whose left edge
// maps into the dark half of the stub image and whose right edge lies on
// the dark/bright boundary (u = 0.5).
func texturedQuad(t *testing.T) []byte {
	material := 0
	ta := &testAsset{
		positions: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0, 1, 1, 0},
		uvs:       []float32{0, 0, 0.5, 0, 0, 1, 0.5, 1},
		indices:   []uint32{0, 1, 2, 1, 3, 2},
		material:  &material,
	}
	glb := ta.build(t)

	// Splice material, texture and image into the document.
	asset := parseTestAsset(t, glb)
	imgView := 0
	src := 0
	asset.Doc.Images = []gltf.Image{{BufferView: &imgView, MimeType: "image/png"}}
	asset.Doc.Textures = []gltf.Texture{{Source: &src}}
	asset.Doc.Materials = []gltf.Material{{
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorTexture: &gltf.TextureInfo{Index: 0},
		},
	}}
	out, err := gltf.EncodeGLB(&asset.Doc, asset.Bin)
	require.NoError(t, err)
	return out
}

func TestTextureImportanceScoresEdgeRegion(t *testing.T) {
	glb := texturedQuad(t)
	asset := parseTestAsset(t, glb)

	opts := DefaultOptions()
	opts.TextureAware = true
	opts.ImageCodec = &stubImageCodec{w: 64, h: 64}
	oc := newOptimizeContext(context.Background(), asset, opts)

	snap, err := ingestPrimitive(asset, asset.Primitives()[0])
	require.NoError(t, err)

	scores := oc.textureImportance(snap)
	require.NotNil(t, scores)
	require.Len(t, scores, snap.vertexCount)

	maxScore := float32(0)
	for _, s := range scores {
		assert.GreaterOrEqual(t, s, float32(0))
		assert.LessOrEqual(t, s, float32(1))
		if s > maxScore {
			maxScore = s
		}
	}
	assert.Equal(t, float32(1), maxScore, "scores normalize to a max of 1")
}

func TestTextureImportanceNilWithoutMaterial(t *testing.T) {
	ta := &testAsset{
		positions: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		uvs:       []float32{0, 0, 1, 0, 0, 1},
		indices:   []uint32{0, 1, 2},
	}
	asset := parseTestAsset(t, ta.build(t))

	opts := DefaultOptions()
	opts.ImageCodec = &stubImageCodec{w: 8, h: 8}
	oc := newOptimizeContext(context.Background(), asset, opts)

	snap, err := ingestPrimitive(asset, asset.Primitives()[0])
	require.NoError(t, err)
	assert.Nil(t, oc.textureImportance(snap))
}

func TestViewImportanceCoversVisibleGeometry(t *testing.T) {
	ta := &testAsset{
		positions: []float32{-1, -1, 0, 1, -1, 0, 0, 1, 0},
		indices:   []uint32{0, 1, 2},
	}
	asset := parseTestAsset(t, ta.build(t))

	opts := DefaultOptions()
	oc := newOptimizeContext(context.Background(), asset, opts)

	snap, err := ingestPrimitive(asset, asset.Primitives()[0])
	require.NoError(t, err)

	scores, err := oc.viewImportance([]*primitiveSnapshot{snap})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	// A lone flat triangle draws nothing in the edge-on axial views; any
	// scores the analyzer produces for it must lie in [0,1].
	if scores[0] != nil {
		for v, s := range scores[0] {
			assert.GreaterOrEqual(t, s, float32(0), "vertex %d", v)
			assert.LessOrEqual(t, s, float32(1), "vertex %d", v)
		}
	}
}

func TestMergeScores(t *testing.T) {
	assert.Nil(t, mergeScores(nil, nil, 3))

	a := []float32{0.2, 0.8, 0}
	b := []float32{0.5, 0.1, 0}
	merged := mergeScores(a, b, 3)
	assert.Equal(t, []float32{0.5, 0.8, 0}, merged)

	onlyA := mergeScores(a, nil, 3)
	assert.Equal(t, a, onlyA)
}

func TestSampleBilinearWraps(t *testing.T) {
	grid := []float32{0, 1, 0, 1} // 2x2 checker
	v1 := sampleBilinear(grid, 2, 2, 0.25, 0.25)
	v2 := sampleBilinear(grid, 2, 2, 1.25, 0.25) // wraps to 0.25
	assert.Equal(t, v1, v2)
}

func TestOptimizeTextureAwareEndToEnd(t *testing.T) {
	glb := texturedQuad(t)

	opts := DefaultOptions()
	opts.TextureAware = true
	opts.ImageCodec = &stubImageCodec{w: 32, h: 32}
	opts.MeshoptCompression = false
	opts.LODLevels = []float32{1.0, 0.5}

	result, err := OptimizeBytes(context.Background(), glb, opts)
	require.NoError(t, err)
	require.Len(t, result.Levels, 2)
	assert.GreaterOrEqual(t, result.Levels[0].Triangles, result.Levels[1].Triangles)
}
