package meshreduce

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/playsaurus-inc/mesh-reduce/gltf"
	"github.com/playsaurus-inc/mesh-reduce/meshopt"
	"github.com/playsaurus-inc/mesh-reduce/simplifier"
)

// Optimize runs the full pipeline over a parsed asset: snapshot every
// primitive (dedupe + cache reorder), compute shared importance when
// texture-aware optimization is on, build the LOD chain and frame one
// GLB per level.
//
// Schema errors abort the whole call; degraded capabilities are
// reported on Result.Skipped. On cancellation all partial state is
// discarded and the context error is returned.
func Optimize(ctx context.Context, asset *gltf.Asset, opts Options) (*Result, error) {
	opts.normalize()
	if opts.Simplifier == nil {
		opts.Simplifier = simplifier.New()
	}
	if opts.BufferCodec == nil {
		opts.BufferCodec = meshopt.New()
	}
	if opts.ImageCodec == nil {
		opts.ImageCodec = NewStdImageCodec()
	}

	oc := newOptimizeContext(ctx, asset, opts)
	log := oc.log

	inStats := asset.Stats()
	for _, warning := range asset.Warnings {
		log.Warnf("%s", warning)
	}

	// Stage 1-3: ingest, dedupe, reorder. The result is the snapshot
	// every LOD ratio starts from.
	var snaps []*primitiveSnapshot
	for _, ref := range asset.Primitives() {
		if err := oc.cancelled(); err != nil {
			return nil, err
		}
		snap, err := ingestPrimitive(asset, ref)
		if err != nil {
			return nil, err
		}
		if opts.DeduplicateVertices {
			before := snap.vertexCount
			snap.dedupe(oc.simplifier)
			log.Debugf("mesh %d primitive %d: dedupe %d -> %d vertices",
				snap.meshIndex, snap.primIndex, before, snap.vertexCount)
		}
		if opts.OptimizeVertexCache {
			snap.reorder(oc.simplifier)
		}
		snaps = append(snaps, snap)
	}

	if opts.TextureAware {
		if err := oc.computeImportance(snaps); err != nil {
			return nil, err
		}
	}

	result := &Result{
		RunID:          uuid.NewString(),
		InputTriangles: inStats.Triangles,
		InputBytes:     len(asset.Bin),
	}

	for _, ratio := range opts.LODLevels {
		if err := oc.cancelled(); err != nil {
			return nil, err
		}
		level, err := oc.buildLevel(snaps, ratio)
		if err != nil {
			return nil, err
		}
		glb, err := oc.writeLevel(level)
		if err != nil {
			return nil, err
		}
		level.GLB = glb
		result.Levels = append(result.Levels, *level)
		log.Infof("LOD %.2f: %d triangles, %d bytes", ratio, level.Triangles, len(glb))
	}

	first := &result.Levels[0]
	result.Output = first.GLB
	result.OutputTriangles = first.Triangles
	result.OutputBytes = len(first.GLB)

	for capability := range oc.skipped {
		result.Skipped = append(result.Skipped, capability)
	}
	sort.Strings(result.Skipped)
	return result, nil
}

// OptimizeBytes parses a GLB and optimizes it in one call.
func OptimizeBytes(ctx context.Context, data []byte, opts Options) (*Result, error) {
	asset, err := gltf.Parse(data)
	if err != nil {
		return nil, err
	}
	return Optimize(ctx, asset, opts)
}
