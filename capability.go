package meshreduce

// Simplifier is the mesh-processing capability the pipeline drives. The
// bundled implementation lives in the simplifier package; a caller can
// inject a GPU-backed one with the same contract.
type Simplifier interface {
	// Compact deduplicates vertices referenced by indices. vertexData
	// holds vertexCount elements of vertexStride bytes each; vertices
	// with identical bytes collapse to one slot. remap maps an old
	// vertex index to its slot in the deduplicated vertex array.
	Compact(indices []uint32, vertexCount int, vertexData []byte, vertexStride int) (remap []uint32, uniqueCount int)

	// Reorder produces a triangle order friendly to a post-transform
	// vertex cache and a remap densifying vertex slots in first-use
	// order.
	Reorder(indices []uint32, vertexCount int) (newIndices []uint32, remap []uint32)

	// Simplify reduces the index list by edge collapse. Locked vertices
	// are never removed; collapses whose error in normalized parameter
	// space exceeds errorThreshold are abandoned. When uvs is non-nil, UV
	// distortion joins the error metric with weight 1 per channel. Border
	// edges are always locked. targetIndexCount has already been clamped
	// to a positive multiple of 3 by the driver.
	Simplify(indices []uint32, positions []float32, uvs []float32, vertexLock []bool,
		targetIndexCount int, errorThreshold float32) (newIndices []uint32, achievedError float32, err error)
}

// BufferCodec compresses bufferView payloads. On error the writer falls
// back to the uncompressed view.
type BufferCodec interface {
	// EncodeIndexBuffer packs a u32 triangle index stream (logical
	// stride 4).
	EncodeIndexBuffer(indices []uint32) ([]byte, error)

	// EncodeVertexBuffer packs count elements of the given stride.
	// Stride must be positive and at most 256.
	EncodeVertexBuffer(data []byte, count, stride int) ([]byte, error)
}

// ImageData is a decoded raster: tightly packed RGBA, 4 bytes per pixel.
type ImageData struct {
	Width  int
	Height int
	RGBA   []byte
}

// EncodedImage is a re-encoded raster produced by ImageCodec.Resize.
type EncodedImage struct {
	Data   []byte
	Width  int
	Height int
}

// ImageCodec decodes and resamples material images. Decode failures are
// recovered locally: the image passes through untouched and contributes
// nothing to importance.
type ImageCodec interface {
	Decode(data []byte, mime string) (*ImageData, error)
	Resize(data []byte, mime string, scale float32) (*EncodedImage, error)
	Dimensions(data []byte, mime string) (width, height int, err error)
}
