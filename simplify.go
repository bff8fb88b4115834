package meshreduce

import (
	"github.com/playsaurus-inc/mesh-reduce/gltf"
)

// simplifyTarget clamps a ratio-derived index count to a positive
// multiple of 3.
func simplifyTarget(indexCount int, ratio float32) int {
	target := int(float32(indexCount) * ratio)
	target -= target % 3
	if target < 3 {
		target = 3
	}
	return target
}

// simplifySnapshot reduces a snapshot in place to the given ratio using
// the Simplifier capability, then re-compacts vertex indexing. Failures
// degrade to the identity transform.
func (oc *OptimizeContext) simplifySnapshot(snap *primitiveSnapshot, ratio float32) {
	if ratio >= 1 || snap.mode != gltf.ModeTriangles || snap.triangleCount() == 0 {
		return
	}
	if oc.simplifier == nil {
		oc.skip("simplifier")
		return
	}

	positions := snap.positions()
	if positions == nil {
		return
	}
	uvs := snap.texCoords(0)

	var lock []bool
	if snap.importance != nil {
		lock = buildVertexLock(snap.importance, snap.seam, oc.opts.ImportanceThreshold)
	}

	target := simplifyTarget(len(snap.indices), ratio)
	newIndices, achieved, err := oc.simplifier.Simplify(
		snap.indices, positions, uvs, lock, target, oc.opts.LODErrorThreshold)
	if err != nil {
		oc.log.Warnf("mesh %d primitive %d: simplify failed: %v", snap.meshIndex, snap.primIndex, err)
		oc.skip("simplifier")
		return
	}
	oc.log.Debugf("mesh %d primitive %d: %d -> %d indices at ratio %.2f (error %.5f)",
		snap.meshIndex, snap.primIndex, len(snap.indices), len(newIndices), ratio, achieved)

	snap.indices = newIndices

	// Densify vertex slots; duplicates created upstream stay merged.
	data, stride := snap.interleaveAttrs()
	remap, unique := oc.simplifier.Compact(snap.indices, snap.vertexCount, data, stride)
	snap.applyRemap(remap, unique)
}
