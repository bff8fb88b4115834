package meshreduce

import (
	"context"

	"github.com/playsaurus-inc/mesh-reduce/gltf"
)

// OptimizeContext carries the caches and capabilities of one Optimize
// call. Caches are scoped to the call; nothing here is global or shared
// across calls.
type OptimizeContext struct {
	ctx   context.Context
	asset *gltf.Asset
	opts  Options
	log   Logger

	simplifier Simplifier
	codec      BufferCodec
	images     ImageCodec

	// Decoded images memoized by image index; nil entries mark decode
	// failures so they are not retried.
	imageCache map[int]*ImageData

	// Per-image texture importance grids, keyed by image index.
	texMapCache map[int][]float32

	// Per-primitive importance maps, keyed by (mesh, primitive), shared
	// across every LOD ratio.
	importanceCache map[[2]int][]float32

	// Capabilities that failed or were absent, reported on the result.
	skipped map[string]bool
}

func newOptimizeContext(ctx context.Context, asset *gltf.Asset, opts Options) *OptimizeContext {
	return &OptimizeContext{
		ctx:             ctx,
		asset:           asset,
		opts:            opts,
		log:             opts.logger(),
		simplifier:      opts.Simplifier,
		codec:           opts.BufferCodec,
		images:          opts.ImageCodec,
		imageCache:      make(map[int]*ImageData),
		texMapCache:     make(map[int][]float32),
		importanceCache: make(map[[2]int][]float32),
		skipped:         make(map[string]bool),
	}
}

// cancelled checks the caller's context at a stage boundary.
func (oc *OptimizeContext) cancelled() error {
	select {
	case <-oc.ctx.Done():
		return oc.ctx.Err()
	default:
		return nil
	}
}

func (oc *OptimizeContext) skip(capability string) {
	if !oc.skipped[capability] {
		oc.skipped[capability] = true
		oc.log.Warnf("capability degraded: %s", capability)
	}
}

// decodeImage memoizes ImageCodec.Decode per image index. A failed
// decode caches nil and is reported once.
func (oc *OptimizeContext) decodeImage(index int) *ImageData {
	if img, ok := oc.imageCache[index]; ok {
		return img
	}
	var decoded *ImageData
	if oc.images != nil {
		data := oc.asset.ImageData(index)
		if data == nil {
			data = decodeDataURI(oc.asset, index)
		}
		if data != nil {
			mime := ""
			if index < len(oc.asset.Doc.Images) {
				mime = oc.asset.Doc.Images[index].MimeType
			}
			img, err := oc.images.Decode(data, mime)
			if err != nil {
				oc.log.Warnf("image %d: decode failed: %v", index, err)
				oc.skip("image-decode")
			} else {
				decoded = img
			}
		}
	}
	oc.imageCache[index] = decoded
	return decoded
}
