package simplifier

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func packVec3(vals ...float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func TestCompactMergesDuplicates(t *testing.T) {
	s := New()
	// Two coincident triangles over 6 vertices, positions repeated.
	data := packVec3(
		0, 0, 0, 1, 0, 0, 0, 1, 0,
		0, 0, 0, 1, 0, 0, 0, 1, 0,
	)
	indices := []uint32{0, 1, 2, 3, 4, 5}

	remap, unique := s.Compact(indices, 6, data, 12)
	assert.Equal(t, 3, unique)
	for i := 0; i < 3; i++ {
		assert.Equal(t, remap[i], remap[i+3], "duplicate vertex %d must share a slot", i)
	}

	// Apply the remap: max index + 1 must equal the unique count.
	maxIdx := uint32(0)
	for _, old := range indices {
		if remap[old] > maxIdx {
			maxIdx = remap[old]
		}
	}
	assert.Equal(t, unique, int(maxIdx)+1)
}

func TestCompactDropsUnreferenced(t *testing.T) {
	s := New()
	data := packVec3(0, 0, 0, 1, 0, 0, 0, 1, 0, 9, 9, 9)
	remap, unique := s.Compact([]uint32{0, 1, 2}, 4, data, 12)
	assert.Equal(t, 3, unique)
	assert.Equal(t, Unmapped, remap[3])
}

func TestReorderPreservesTriangles(t *testing.T) {
	s := New()
	// Quad: two triangles sharing an edge.
	indices := []uint32{2, 1, 0, 1, 2, 3}
	newIndices, remap := s.Reorder(indices, 4)
	require.Len(t, newIndices, 6)

	// Same triangle set after applying the remap to the original list.
	want := map[[3]uint32]int{}
	for t3 := 0; t3 < 2; t3++ {
		key := [3]uint32{remap[indices[t3*3]], remap[indices[t3*3+1]], remap[indices[t3*3+2]]}
		want[key]++
	}
	got := map[[3]uint32]int{}
	for t3 := 0; t3 < 2; t3++ {
		got[[3]uint32{newIndices[t3*3], newIndices[t3*3+1], newIndices[t3*3+2]}]++
	}
	assert.Equal(t, want, got)

	// Slots are dense in first-use order: indices start at 0.
	assert.Equal(t, uint32(0), newIndices[0])
}

func TestReorderDeterministic(t *testing.T) {
	s := New()
	indices := []uint32{0, 1, 2, 2, 1, 3, 3, 1, 4, 4, 1, 5}
	a, _ := s.Reorder(indices, 6)
	b, _ := s.Reorder(indices, 6)
	assert.Equal(t, a, b)
}

// gridMesh builds an n x n vertex grid of (n-1)^2 * 2 triangles in the
// XY plane.
func gridMesh(n int) ([]uint32, []float32) {
	positions := make([]float32, 0, n*n*3)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			positions = append(positions, float32(x), float32(y), 0)
		}
	}
	var indices []uint32
	for y := 0; y < n-1; y++ {
		for x := 0; x < n-1; x++ {
			a := uint32(y*n + x)
			b := a + 1
			c := a + uint32(n)
			d := c + 1
			indices = append(indices, a, b, c, b, d, c)
		}
	}
	return indices, positions
}

func TestSimplifyReducesFlatGrid(t *testing.T) {
	s := New()
	indices, positions := gridMesh(10) // 162 triangles, all coplanar

	target := len(indices) / 2
	target -= target % 3
	out, achieved, err := s.Simplify(indices, positions, nil, nil, target, 0.1)
	require.NoError(t, err)

	assert.LessOrEqual(t, len(out), target)
	assert.Zero(t, len(out)%3)
	assert.LessOrEqual(t, achieved, float32(0.1))
}

func TestSimplifyRespectsLocks(t *testing.T) {
	s := New()
	indices, positions := gridMesh(6)
	vertexCount := len(positions) / 3

	lock := make([]bool, vertexCount)
	lockedVertex := uint32(2*6 + 2) // interior vertex
	lock[lockedVertex] = true

	out, _, err := s.Simplify(indices, positions, nil, lock, 3, 10)
	require.NoError(t, err)

	found := false
	for _, idx := range out {
		if idx == lockedVertex {
			found = true
		}
	}
	assert.True(t, found, "locked vertex must survive simplification")
}

func TestSimplifyStopsAtErrorThreshold(t *testing.T) {
	s := New()
	// A unit cube: 8 corners, 12 triangles. Every collapse destroys a
	// corner, so a tiny threshold must refuse to reduce.
	positions := []float32{
		0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0,
		0, 0, 1, 1, 0, 1, 1, 1, 1, 0, 1, 1,
	}
	indices := []uint32{
		0, 1, 2, 0, 2, 3, 4, 6, 5, 4, 7, 6,
		0, 4, 5, 0, 5, 1, 3, 2, 6, 3, 6, 7,
		0, 3, 7, 0, 7, 4, 1, 5, 6, 1, 6, 2,
	}
	out, _, err := s.Simplify(indices, positions, nil, nil, 3, 1e-9)
	require.NoError(t, err)
	assert.Equal(t, len(indices), len(out), "no collapse fits under the threshold")
}

func TestSimplifyTargetAlreadyMet(t *testing.T) {
	s := New()
	indices := []uint32{0, 1, 2}
	positions := []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}
	out, achieved, err := s.Simplify(indices, positions, nil, nil, 3, 0.5)
	require.NoError(t, err)
	assert.Equal(t, indices, out)
	assert.Zero(t, achieved)
}

func TestSimplifyRejectsRaggedIndices(t *testing.T) {
	s := New()
	_, _, err := s.Simplify([]uint32{0, 1}, []float32{0, 0, 0}, nil, nil, 0, 1)
	assert.ErrorIs(t, err, ErrDegenerate)
}
