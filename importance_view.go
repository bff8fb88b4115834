package meshreduce

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/playsaurus-inc/mesh-reduce/gltf"
	"github.com/playsaurus-inc/mesh-reduce/raster"
)

// viewImportance renders the whole scene from the canonical viewpoints
// and scores triangles by the edge energy of the pixels they cover.
// Triangle ids are assigned contiguously in primitive order and the
// result is partitioned back per snapshot as per-vertex scores.
//
// Returns one score slice per snapshot, nil where a snapshot contributed
// no triangles. The error is non-nil only on cancellation.
func (oc *OptimizeContext) viewImportance(snaps []*primitiveSnapshot) ([][]float32, error) {
	// Global bounding box over all triangle-mode snapshots.
	inf := float32(math.Inf(1))
	bbMin := mgl32.Vec3{inf, inf, inf}
	bbMax := mgl32.Vec3{-inf, -inf, -inf}
	totalTris := 0
	for _, snap := range snaps {
		if snap.mode != gltf.ModeTriangles {
			continue
		}
		positions := snap.positions()
		for v := 0; v*3+2 < len(positions); v++ {
			for axis := 0; axis < 3; axis++ {
				p := positions[v*3+axis]
				if p < bbMin[axis] {
					bbMin[axis] = p
				}
				if p > bbMax[axis] {
					bbMax[axis] = p
				}
			}
		}
		totalTris += snap.triangleCount()
	}
	if totalTris == 0 {
		return make([][]float32, len(snaps)), nil
	}

	maxDim := float32(0)
	for axis := 0; axis < 3; axis++ {
		if d := bbMax[axis] - bbMin[axis]; d > maxDim {
			maxDim = d
		}
	}
	scale := float32(1)
	if maxDim > 0 {
		scale = 2 / maxDim
	}
	center := bbMin.Add(bbMax).Mul(0.5)

	// Flatten all triangles with contiguous global ids.
	type triRange struct{ first, count int }
	ranges := make([]triRange, len(snaps))
	tris := make([]raster.Triangle, 0, totalTris)
	for si, snap := range snaps {
		ranges[si] = triRange{first: len(tris), count: snap.triangleCount()}
		if snap.mode != gltf.ModeTriangles {
			continue
		}
		positions := snap.positions()
		uvs := snap.texCoords(0)
		sampler := oc.baseColorSampler(snap)
		for t := 0; t < snap.triangleCount(); t++ {
			var tri raster.Triangle
			tri.ID = int32(len(tris))
			for k := 0; k < 3; k++ {
				v := snap.indices[t*3+k]
				p := mgl32.Vec3{positions[v*3], positions[v*3+1], positions[v*3+2]}
				tri.P[k] = p.Sub(center).Mul(scale)
				if uvs != nil {
					tri.UV[k] = [2]float32{uvs[v*2], uvs[v*2+1]}
				}
			}
			if uvs != nil {
				tri.Sample = sampler
			}
			tris = append(tris, tri)
		}
	}

	importance := make([]float64, totalTris)
	visibility := make([]int, totalTris)

	fb := raster.NewFramebuffer(raster.ViewSize, raster.ViewSize)
	for _, dir := range raster.ViewDirections() {
		if err := oc.cancelled(); err != nil {
			return nil, err
		}
		fb.Clear()
		vp := raster.ViewProjection(dir)
		for t := range tris {
			fb.Draw(vp, &tris[t])
		}
		for y := 0; y < fb.H; y++ {
			for x := 0; x < fb.W; x++ {
				id := fb.ID[y*fb.W+x]
				if id == 0 {
					continue
				}
				tri := int(id - 1)
				importance[tri] += float64(raster.Sobel(fb.Luma, fb.W, fb.H, x, y))
				visibility[tri]++
			}
		}
	}

	for t := range importance {
		if visibility[t] > 0 {
			importance[t] /= float64(visibility[t])
		}
	}

	// Partition back per snapshot, normalize per primitive, project
	// per-triangle scores onto vertices by averaging incident triangles.
	out := make([][]float32, len(snaps))
	for si, snap := range snaps {
		r := ranges[si]
		if r.count == 0 {
			continue
		}
		maxScore := 0.0
		for t := 0; t < r.count; t++ {
			if importance[r.first+t] > maxScore {
				maxScore = importance[r.first+t]
			}
		}
		if maxScore == 0 {
			continue
		}

		vertexScore := make([]float64, snap.vertexCount)
		incident := make([]int, snap.vertexCount)
		for t := 0; t < r.count; t++ {
			score := importance[r.first+t] / maxScore
			for k := 0; k < 3; k++ {
				v := snap.indices[t*3+k]
				vertexScore[v] += score
				incident[v]++
			}
		}
		scores := make([]float32, snap.vertexCount)
		for v := range scores {
			if incident[v] > 0 {
				scores[v] = float32(vertexScore[v] / float64(incident[v]))
			}
		}
		out[si] = scores
	}
	return out, nil
}

// baseColorSampler returns a luminance sampler over the snapshot
// material's base color texture, or nil.
func (oc *OptimizeContext) baseColorSampler(snap *primitiveSnapshot) func(u, v float32) float32 {
	if snap.material == nil || *snap.material < 0 || *snap.material >= len(oc.asset.Doc.Materials) {
		return nil
	}
	mat := &oc.asset.Doc.Materials[*snap.material]
	if mat.PBRMetallicRoughness == nil || mat.PBRMetallicRoughness.BaseColorTexture == nil {
		return nil
	}
	imageIndex, ok := textureImage(&oc.asset.Doc, mat.PBRMetallicRoughness.BaseColorTexture.Index)
	if !ok {
		return nil
	}
	img := oc.decodeImage(imageIndex)
	if img == nil {
		return nil
	}

	w, h := img.Width, img.Height
	luma := make([]float32, w*h)
	for i := 0; i < w*h; i++ {
		r := float32(img.RGBA[i*4])
		g := float32(img.RGBA[i*4+1])
		b := float32(img.RGBA[i*4+2])
		luma[i] = (0.299*r + 0.587*g + 0.114*b) / 255
	}
	return func(u, v float32) float32 {
		return sampleBilinear(luma, w, h, u, v)
	}
}
