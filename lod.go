package meshreduce

// computeImportance fills each snapshot's importance map and seam mask.
// Texture-space and view-space scores merge by per-vertex maximum;
// either analyzer may contribute nothing for a primitive. Importance is
// computed once and shared across every LOD ratio.
func (oc *OptimizeContext) computeImportance(snaps []*primitiveSnapshot) error {
	viewScores, err := oc.viewImportance(snaps)
	if err != nil {
		return err
	}

	for si, snap := range snaps {
		if err := oc.cancelled(); err != nil {
			return err
		}
		texScores := oc.textureImportance(snap)
		merged := mergeScores(texScores, viewScores[si], snap.vertexCount)
		if merged == nil {
			continue
		}
		snap.importance = merged
		snap.seam = detectSeams(snap.positions(), snap.texCoords(0))
		oc.importanceCache[[2]int{snap.meshIndex, snap.primIndex}] = merged
	}
	return nil
}

// mergeScores is the element-wise maximum of two optional score slices.
func mergeScores(a, b []float32, vertexCount int) []float32 {
	if a == nil && b == nil {
		return nil
	}
	out := make([]float32, vertexCount)
	for v := 0; v < vertexCount; v++ {
		var va, vb float32
		if v < len(a) {
			va = a[v]
		}
		if v < len(b) {
			vb = b[v]
		}
		if va > vb {
			out[v] = va
		} else {
			out[v] = vb
		}
	}
	return out
}

// buildLevel runs the per-ratio stages over fresh snapshot clones and
// assembles one LOD level (without its GLB, which the writer adds).
func (oc *OptimizeContext) buildLevel(snaps []*primitiveSnapshot, ratio float32) (*LODLevel, error) {
	level := &LODLevel{Ratio: ratio}
	for _, snap := range snaps {
		if err := oc.cancelled(); err != nil {
			return nil, err
		}
		work := snap.clone()
		oc.simplifySnapshot(work, ratio)
		prim := finishPrimitive(work, &oc.opts)
		level.Triangles += prim.Triangles()
		level.Primitives = append(level.Primitives, *prim)
	}
	return level, nil
}
