package gltf

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// Container-level failure modes. Callers match with errors.Is.
var (
	ErrBadMagic           = errors.New("gltf: bad magic")
	ErrUnsupportedVersion = errors.New("gltf: unsupported container version")
	ErrTruncatedChunk     = errors.New("gltf: truncated chunk")
	ErrMissingJSONChunk   = errors.New("gltf: missing JSON chunk")
	ErrDuplicateChunk     = errors.New("gltf: duplicate chunk")
	ErrAccessorOutOfRange = errors.New("gltf: accessor out of range")
	ErrExternalBuffer     = errors.New("gltf: external buffer URI not supported")
)

// Asset is a parsed GLB: the decoded JSON document plus the immutable
// binary chunk. The Bin slice aliases the input bytes; the asset is
// read-only after Parse.
type Asset struct {
	Doc Document
	Bin []byte

	// Warnings collected during parse, e.g. a mesh shared by nodes with
	// differing rotations (the transform fixup is only exact for one of
	// them).
	Warnings []string
}

// Parse decodes a glTF-Binary container. The returned asset borrows data;
// the caller must not mutate it while the asset is in use.
func Parse(data []byte) (*Asset, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: file shorter than header", ErrTruncatedChunk)
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != MagicGLB {
		return nil, fmt.Errorf("%w: 0x%08X", ErrBadMagic, magic)
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != 2 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	total := int(binary.LittleEndian.Uint32(data[8:12]))
	if total > len(data) {
		return nil, fmt.Errorf("%w: header length %d exceeds file size %d", ErrTruncatedChunk, total, len(data))
	}

	var jsonChunk, binChunk []byte
	haveJSON, haveBin := false, false

	offset := headerSize
	for offset+8 <= total {
		length := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
		chunkType := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		payloadStart := offset + 8
		if payloadStart+length > total {
			return nil, fmt.Errorf("%w: chunk at offset %d claims %d bytes", ErrTruncatedChunk, offset, length)
		}
		payload := data[payloadStart : payloadStart+length]

		switch chunkType {
		case ChunkJSON:
			if haveJSON {
				return nil, fmt.Errorf("%w: JSON", ErrDuplicateChunk)
			}
			jsonChunk = payload
			haveJSON = true
		case ChunkBIN:
			if haveBin {
				return nil, fmt.Errorf("%w: BIN", ErrDuplicateChunk)
			}
			binChunk = payload
			haveBin = true
		default:
			// Unknown chunk types are skipped.
		}

		offset = payloadStart + length
		if rem := offset % chunkAlign; rem != 0 {
			offset += chunkAlign - rem
		}
	}

	if !haveJSON {
		return nil, ErrMissingJSONChunk
	}

	asset := &Asset{Bin: binChunk}
	if err := json.Unmarshal(jsonChunk, &asset.Doc); err != nil {
		return nil, fmt.Errorf("gltf: decoding JSON chunk: %w", err)
	}
	if err := asset.validate(); err != nil {
		return nil, err
	}
	asset.collectWarnings()
	return asset, nil
}

// validate checks the addressing invariants: buffer 0 is the BIN chunk,
// every bufferView lies within it, every accessor lies within its view.
func (a *Asset) validate() error {
	if len(a.Doc.Buffers) > 0 && a.Doc.Buffers[0].URI != "" {
		return fmt.Errorf("%w: buffer 0 has uri %q", ErrExternalBuffer, a.Doc.Buffers[0].URI)
	}
	for i, bv := range a.Doc.BufferViews {
		if bv.Buffer != 0 {
			return fmt.Errorf("%w: bufferView %d references buffer %d", ErrExternalBuffer, i, bv.Buffer)
		}
		if bv.ByteOffset < 0 || bv.ByteLength < 0 || bv.ByteOffset+bv.ByteLength > len(a.Bin) {
			return fmt.Errorf("%w: bufferView %d [%d,%d) exceeds bin size %d",
				ErrAccessorOutOfRange, i, bv.ByteOffset, bv.ByteOffset+bv.ByteLength, len(a.Bin))
		}
	}
	for i := range a.Doc.Accessors {
		acc := &a.Doc.Accessors[i]
		if acc.BufferView == nil {
			continue // zero-filled accessor, legal
		}
		if *acc.BufferView < 0 || *acc.BufferView >= len(a.Doc.BufferViews) {
			return fmt.Errorf("%w: accessor %d references bufferView %d", ErrAccessorOutOfRange, i, *acc.BufferView)
		}
		bv := &a.Doc.BufferViews[*acc.BufferView]
		stride := bv.ByteStride
		elem := acc.ElementSize()
		if elem == 0 {
			return fmt.Errorf("gltf: accessor %d has unknown type %q/%d", i, acc.Type, acc.ComponentType)
		}
		if stride == 0 {
			stride = elem
		}
		if acc.Count < 0 {
			return fmt.Errorf("%w: accessor %d has negative count", ErrAccessorOutOfRange, i)
		}
		if acc.Count > 0 {
			end := acc.ByteOffset + (acc.Count-1)*stride + elem
			if end > bv.ByteLength {
				return fmt.Errorf("%w: accessor %d needs %d bytes of bufferView %d (%d)",
					ErrAccessorOutOfRange, i, end, *acc.BufferView, bv.ByteLength)
			}
		}
	}
	return nil
}

// collectWarnings flags assets where the quantization transform fixup
// cannot be exact: one mesh used by nodes with differing rotations.
func (a *Asset) collectWarnings() {
	rotByMesh := make(map[int][]float32)
	for i := range a.Doc.Nodes {
		n := &a.Doc.Nodes[i]
		if n.Mesh == nil {
			continue
		}
		rot := n.Rotation
		if rot == nil {
			rot = []float32{0, 0, 0, 1}
		}
		if prev, ok := rotByMesh[*n.Mesh]; ok {
			if !sameVec(prev, rot) {
				a.Warnings = append(a.Warnings,
					fmt.Sprintf("mesh %d is referenced by nodes with differing rotations; quantization transform fixup is exact for only one of them", *n.Mesh))
			}
		} else {
			rotByMesh[*n.Mesh] = rot
		}
	}
}

func sameVec(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// PrimitiveRef addresses one primitive within the asset. Iteration order
// is stable: mesh index, then primitive index.
type PrimitiveRef struct {
	MeshIndex int
	PrimIndex int
	Prim      *Primitive
}

// Primitives returns every primitive in stable order.
func (a *Asset) Primitives() []PrimitiveRef {
	var refs []PrimitiveRef
	for mi := range a.Doc.Meshes {
		for pi := range a.Doc.Meshes[mi].Primitives {
			refs = append(refs, PrimitiveRef{
				MeshIndex: mi,
				PrimIndex: pi,
				Prim:      &a.Doc.Meshes[mi].Primitives[pi],
			})
		}
	}
	return refs
}
