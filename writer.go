package meshreduce

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/playsaurus-inc/mesh-reduce/gltf"
)

// emitState sequences the writer: geometry first, then images, then the
// non-mesh accessors, then the container frame.
type emitState int

const (
	stateInitial emitState = iota
	stateGeometry
	stateImages
	stateAnimations
	stateFinalized
)

// writer rebuilds the output document from scratch; it never patches the
// input in place.
type writer struct {
	oc    *OptimizeContext
	doc   gltf.Document
	bin   []byte
	state emitState

	anyQuantized  bool
	anyCompressed bool

	// meshAffine holds the POSITION de-quantization affine folded into
	// node transforms, keyed by mesh index (first primitive wins).
	meshAffine map[int]*DequantAffine

	// accessorRemap maps input accessor indices of copied non-mesh data
	// to output accessor indices.
	accessorRemap map[int]int
}

func newWriter(oc *OptimizeContext) *writer {
	return &writer{
		oc:            oc,
		meshAffine:    make(map[int]*DequantAffine),
		accessorRemap: make(map[int]int),
	}
}

func (w *writer) advance(to emitState) {
	if to < w.state {
		panic(fmt.Sprintf("meshreduce: writer state regression %d -> %d", w.state, to))
	}
	w.state = to
}

// appendView appends aligned bytes as a new bufferView and returns its
// index.
func (w *writer) appendView(data []byte, byteStride, target int, ext gltf.RawExtensions) int {
	if pad := gltf.Pad(len(w.bin)); pad > 0 {
		w.bin = append(w.bin, make([]byte, pad)...)
	}
	view := gltf.BufferView{
		Buffer:     0,
		ByteOffset: len(w.bin),
		ByteLength: len(data),
		ByteStride: byteStride,
		Target:     target,
		Extensions: ext,
	}
	w.bin = append(w.bin, data...)
	w.doc.BufferViews = append(w.doc.BufferViews, view)
	return len(w.doc.BufferViews) - 1
}

func meshoptExtension(offset, length, stride, count int, mode string) gltf.RawExtensions {
	obj := gltf.MeshoptCompression{
		Buffer:     0,
		ByteOffset: offset,
		ByteLength: length,
		ByteStride: stride,
		Count:      count,
		Mode:       mode,
	}
	raw, _ := json.Marshal(obj)
	return gltf.RawExtensions{gltf.ExtMeshoptCompression: raw}
}

// compress runs the BufferCodec when options ask for it. A false return
// means the caller must emit the raw view instead.
func (w *writer) compress(data []byte, count, stride int, mode string) ([]byte, bool) {
	if !w.oc.opts.MeshoptCompression {
		return nil, false
	}
	if w.oc.codec == nil {
		w.oc.skip("compression")
		return nil, false
	}

	var compressed []byte
	var err error
	if mode == gltf.MeshoptModeTriangles {
		indices := make([]uint32, count)
		for i := range indices {
			indices[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
		compressed, err = w.oc.codec.EncodeIndexBuffer(indices)
	} else {
		compressed, err = w.oc.codec.EncodeVertexBuffer(data, count, stride)
	}
	if err != nil {
		w.oc.log.Warnf("compression failed, emitting raw view: %v", err)
		w.oc.skip("compression")
		return nil, false
	}
	return compressed, true
}

// appendCompressedView emits a compressed bufferView carrying the
// EXT_meshopt_compression extension object. The container view itself
// describes the compressed bytes.
func (w *writer) appendCompressedView(compressed []byte, count, stride, target int, mode string) int {
	if pad := gltf.Pad(len(w.bin)); pad > 0 {
		w.bin = append(w.bin, make([]byte, pad)...)
	}
	offset := len(w.bin)
	ext := meshoptExtension(offset, len(compressed), stride, count, mode)
	w.anyCompressed = true
	view := gltf.BufferView{
		Buffer:     0,
		ByteOffset: offset,
		ByteLength: len(compressed),
		Target:     target,
		Extensions: ext,
	}
	w.bin = append(w.bin, compressed...)
	w.doc.BufferViews = append(w.doc.BufferViews, view)
	return len(w.doc.BufferViews) - 1
}

// packIndices narrows u32 indices to the chosen component width.
func packIndices(indices []uint32, component gltf.ComponentType) []byte {
	switch component {
	case gltf.ComponentUnsignedByte:
		out := make([]byte, len(indices))
		for i, v := range indices {
			out[i] = byte(v)
		}
		return out
	case gltf.ComponentUnsignedShort:
		out := make([]byte, len(indices)*2)
		for i, v := range indices {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
		}
		return out
	default:
		out := make([]byte, len(indices)*4)
		for i, v := range indices {
			binary.LittleEndian.PutUint32(out[i*4:], v)
		}
		return out
	}
}

// emitPrimitive writes one optimized primitive's indices and attributes
// and returns the rebuilt JSON primitive.
func (w *writer) emitPrimitive(prim *OptimizedPrimitive) gltf.Primitive {
	w.advance(stateGeometry)

	out := gltf.Primitive{
		Attributes: make(map[string]int, len(prim.Attrs)),
		Material:   prim.Material,
	}
	if prim.Mode != gltf.ModeTriangles {
		mode := prim.Mode
		out.Mode = &mode
	}

	// Indices. Triangle-mode streams compress from the logical u32
	// stream and then decode to stride-4 indices, so the accessor stays
	// wide; everything else emits the minimum-width raw view.
	// Non-triangle modes never compress (mode TRIANGLES assumes a
	// triangle list).
	var idxView int
	if prim.Mode == gltf.ModeTriangles && len(prim.Indices) > 0 {
		widened := packIndices(prim.Indices, gltf.ComponentUnsignedInt)
		if compressed, ok := w.compress(widened, len(prim.Indices), 4, gltf.MeshoptModeTriangles); ok {
			idxView = w.appendCompressedView(compressed, len(prim.Indices), 4,
				gltf.TargetElementArrayBuffer, gltf.MeshoptModeTriangles)
			prim.IndexComponent = gltf.ComponentUnsignedInt
		} else {
			idxView = w.appendView(packIndices(prim.Indices, prim.IndexComponent), 0,
				gltf.TargetElementArrayBuffer, nil)
		}
	} else {
		idxView = w.appendView(packIndices(prim.Indices, prim.IndexComponent), 0,
			gltf.TargetElementArrayBuffer, nil)
	}
	w.doc.Accessors = append(w.doc.Accessors, gltf.Accessor{
		BufferView:    &idxView,
		ComponentType: prim.IndexComponent,
		Count:         len(prim.Indices),
		Type:          gltf.TypeScalar,
	})
	idxAccessor := len(w.doc.Accessors) - 1
	out.Indices = &idxAccessor

	for i := range prim.Attrs {
		name := prim.Attrs[i].Name
		arr := &prim.Attrs[i].Arr
		stride := arr.ElemSize()

		var attrView int
		if compressed, ok := w.tryCompressAttr(prim, arr, stride); ok {
			attrView = w.appendCompressedView(compressed, arr.Count(), stride,
				gltf.TargetArrayBuffer, gltf.MeshoptModeAttributes)
		} else {
			attrView = w.appendView(arr.Data, 0, gltf.TargetArrayBuffer, nil)
		}

		acc := gltf.Accessor{
			BufferView:    &attrView,
			ComponentType: arr.Component,
			Normalized:    arr.Normalized,
			Count:         arr.Count(),
			Type:          arr.ElemType,
		}
		if name == gltf.AttrPosition {
			if prim.PosMin != nil {
				acc.Min = prim.PosMin
				acc.Max = prim.PosMax
			} else {
				acc.Min, acc.Max = floatMinMax(arr)
			}
		}
		if arr.Component != gltf.ComponentFloat && name == gltf.AttrPosition {
			w.anyQuantized = true
		}
		if arr.Normalized && (name == gltf.AttrNormal || name == gltf.AttrTangent || isTexCoord(name)) &&
			arr.Component != gltf.ComponentFloat {
			w.anyQuantized = true
		}
		w.doc.Accessors = append(w.doc.Accessors, acc)
		out.Attributes[name] = len(w.doc.Accessors) - 1
	}
	return out
}

func (w *writer) tryCompressAttr(prim *OptimizedPrimitive, arr *AttrArray, stride int) ([]byte, bool) {
	if prim.Mode != gltf.ModeTriangles || stride <= 0 || stride%4 != 0 || arr.Count() == 0 {
		return nil, false
	}
	return w.compress(arr.Data, arr.Count(), stride, gltf.MeshoptModeAttributes)
}

func floatMinMax(arr *AttrArray) ([]float32, []float32) {
	comps := gltf.ComponentCount(arr.ElemType)
	vals := arr.Floats()
	if comps == 0 || len(vals) == 0 {
		return nil, nil
	}
	min := make([]float32, comps)
	max := make([]float32, comps)
	for c := 0; c < comps; c++ {
		min[c] = vals[c]
		max[c] = vals[c]
	}
	for i := comps; i < len(vals); i += comps {
		for c := 0; c < comps; c++ {
			if vals[i+c] < min[c] {
				min[c] = vals[i+c]
			}
			if vals[i+c] > max[c] {
				max[c] = vals[i+c]
			}
		}
	}
	return min, max
}

// emitImages copies each image into the output buffer, optionally
// substituting a resized variant. URI images pass through untouched.
func (w *writer) emitImages() {
	w.advance(stateImages)
	src := w.oc.asset

	for i := range src.Doc.Images {
		img := src.Doc.Images[i] // copy
		if img.BufferView == nil {
			w.doc.Images = append(w.doc.Images, img)
			continue
		}
		data := src.ImageData(i)
		mime := img.MimeType

		if w.oc.opts.TextureScale < 1 && w.oc.images != nil {
			resized, err := w.oc.images.Resize(data, mime, w.oc.opts.TextureScale)
			if err != nil {
				w.oc.log.Warnf("image %d: resize failed, copying original: %v", i, err)
				w.oc.skip("image-resize")
			} else {
				data = resized.Data
				if mime != "image/jpeg" {
					mime = "image/png"
				}
			}
		}

		view := w.appendView(data, 0, 0, nil)
		img.BufferView = &view
		img.MimeType = mime
		w.doc.Images = append(w.doc.Images, img)
	}
}

// emitAnimationsAndSkins copies animations and skins, carrying every
// accessor they reference verbatim into the new buffer and patching the
// indices.
func (w *writer) emitAnimationsAndSkins() error {
	w.advance(stateAnimations)
	src := w.oc.asset

	for _, anim := range src.Doc.Animations {
		outAnim := gltf.Animation{Name: anim.Name}
		for _, ch := range anim.Channels {
			outAnim.Channels = append(outAnim.Channels, ch)
		}
		for _, smp := range anim.Samplers {
			input, err := w.copyAccessor(smp.Input)
			if err != nil {
				return err
			}
			output, err := w.copyAccessor(smp.Output)
			if err != nil {
				return err
			}
			outAnim.Samplers = append(outAnim.Samplers, gltf.AnimationSampler{
				Input:         input,
				Output:        output,
				Interpolation: smp.Interpolation,
			})
		}
		w.doc.Animations = append(w.doc.Animations, outAnim)
	}

	for _, skin := range src.Doc.Skins {
		outSkin := gltf.Skin{
			Skeleton: skin.Skeleton,
			Joints:   append([]int(nil), skin.Joints...),
			Name:     skin.Name,
		}
		if skin.InverseBindMatrices != nil {
			ibm, err := w.copyAccessor(*skin.InverseBindMatrices)
			if err != nil {
				return err
			}
			outSkin.InverseBindMatrices = &ibm
		}
		w.doc.Skins = append(w.doc.Skins, outSkin)
	}
	return nil
}

// copyAccessor copies a non-mesh accessor's packed data into the output
// buffer, memoized by input index.
func (w *writer) copyAccessor(index int) (int, error) {
	if mapped, ok := w.accessorRemap[index]; ok {
		return mapped, nil
	}
	src := w.oc.asset
	if index < 0 || index >= len(src.Doc.Accessors) {
		return 0, fmt.Errorf("%w: accessor %d", gltf.ErrAccessorOutOfRange, index)
	}
	data, err := src.AccessorData(index)
	if err != nil {
		return 0, err
	}
	acc := src.Doc.Accessors[index] // copy
	view := w.appendView(append([]byte(nil), data...), 0, 0, nil)
	acc.BufferView = &view
	acc.ByteOffset = 0
	acc.Sparse = nil
	w.doc.Accessors = append(w.doc.Accessors, acc)
	mapped := len(w.doc.Accessors) - 1
	w.accessorRemap[index] = mapped
	return mapped, nil
}

// fixNodeTransforms folds each mesh's POSITION de-quantization affine
// into the transforms of the nodes referencing it, so de-quantized
// geometry lands at the original world-space coordinates.
func (w *writer) fixNodeTransforms() {
	src := w.oc.asset
	for i := range src.Doc.Nodes {
		node := src.Doc.Nodes[i] // copy
		if node.Mesh != nil {
			if affine, ok := w.meshAffine[*node.Mesh]; ok && affine != nil {
				applyAffineToNode(&node, affine)
			}
		}
		w.doc.Nodes = append(w.doc.Nodes, node)
	}
}

func applyAffineToNode(node *gltf.Node, affine *DequantAffine) {
	if node.Matrix != nil {
		// p_world = M * (S*q + T)  =>  M' = M * translate(T) * scale(S)
		m := mat4FromSlice(node.Matrix)
		local := mgl32.Translate3D(affine.Center.X(), affine.Center.Y(), affine.Center.Z()).
			Mul4(mgl32.Scale3D(affine.Scale.X(), affine.Scale.Y(), affine.Scale.Z()))
		node.Matrix = mat4ToSlice(m.Mul4(local))
		return
	}

	origScale := mgl32.Vec3{1, 1, 1}
	if node.Scale != nil {
		origScale = mgl32.Vec3{node.Scale[0], node.Scale[1], node.Scale[2]}
	}
	origRot := mgl32.QuatIdent()
	if node.Rotation != nil {
		origRot = mgl32.Quat{
			W: node.Rotation[3],
			V: mgl32.Vec3{node.Rotation[0], node.Rotation[1], node.Rotation[2]},
		}
	}
	origTrans := mgl32.Vec3{}
	if node.Translation != nil {
		origTrans = mgl32.Vec3{node.Translation[0], node.Translation[1], node.Translation[2]}
	}

	newScale := mgl32.Vec3{
		origScale.X() * affine.Scale.X(),
		origScale.Y() * affine.Scale.Y(),
		origScale.Z() * affine.Scale.Z(),
	}
	scaledT := mgl32.Vec3{
		origScale.X() * affine.Center.X(),
		origScale.Y() * affine.Center.Y(),
		origScale.Z() * affine.Center.Z(),
	}
	newTrans := origTrans.Add(origRot.Rotate(scaledT))

	node.Scale = []float32{newScale.X(), newScale.Y(), newScale.Z()}
	node.Translation = []float32{newTrans.X(), newTrans.Y(), newTrans.Z()}
}

func mat4FromSlice(s []float32) mgl32.Mat4 {
	var m mgl32.Mat4
	copy(m[:], s)
	return m
}

func mat4ToSlice(m mgl32.Mat4) []float32 {
	out := make([]float32, 16)
	copy(out, m[:])
	return out
}

// writeLevel assembles and frames the GLB for one LOD level.
func (oc *OptimizeContext) writeLevel(level *LODLevel) ([]byte, error) {
	src := oc.asset
	w := newWriter(oc)

	w.doc.Asset = gltf.AssetInfo{Version: "2.0", Generator: oc.opts.Generator}

	// Meshes in input order; primitives were processed in the same
	// stable order, so this is a single pass.
	w.doc.Meshes = make([]gltf.Mesh, len(src.Doc.Meshes))
	for mi := range src.Doc.Meshes {
		w.doc.Meshes[mi].Name = src.Doc.Meshes[mi].Name
		w.doc.Meshes[mi].Weights = src.Doc.Meshes[mi].Weights
	}
	for pi := range level.Primitives {
		prim := &level.Primitives[pi]
		outPrim := w.emitPrimitive(prim)
		w.doc.Meshes[prim.MeshIndex].Primitives = append(w.doc.Meshes[prim.MeshIndex].Primitives, outPrim)
		if prim.PosAffine != nil {
			if _, ok := w.meshAffine[prim.MeshIndex]; !ok {
				// First primitive's affine wins for shared meshes.
				w.meshAffine[prim.MeshIndex] = prim.PosAffine
			}
		}
	}

	w.emitImages()
	if err := w.emitAnimationsAndSkins(); err != nil {
		return nil, err
	}
	w.fixNodeTransforms()

	// Untouched sections carry over as-is.
	w.doc.Materials = src.Doc.Materials
	w.doc.Textures = src.Doc.Textures
	w.doc.Samplers = src.Doc.Samplers
	w.doc.Scenes = src.Doc.Scenes
	w.doc.Scene = src.Doc.Scene
	w.doc.Cameras = src.Doc.Cameras

	if w.anyQuantized {
		w.doc.ExtensionsUsed = append(w.doc.ExtensionsUsed, gltf.ExtMeshQuantization)
		w.doc.ExtensionsRequired = append(w.doc.ExtensionsRequired, gltf.ExtMeshQuantization)
	}
	if w.anyCompressed {
		w.doc.ExtensionsUsed = append(w.doc.ExtensionsUsed, gltf.ExtMeshoptCompression)
		w.doc.ExtensionsRequired = append(w.doc.ExtensionsRequired, gltf.ExtMeshoptCompression)
	}

	w.doc.Buffers = []gltf.Buffer{{ByteLength: len(w.bin) + gltf.Pad(len(w.bin))}}

	w.advance(stateFinalized)
	return gltf.EncodeGLB(&w.doc, w.bin)
}
