// Package gltf implements parsing and writing of glTF-Binary (GLB)
// assets and the accessor/bufferView addressing model over the binary
// payload.
package gltf

import (
	"encoding/json"
)

// GLB container constants.
const (
	MagicGLB  = 0x46546C67
	ChunkJSON = 0x4E4F534A
	ChunkBIN  = 0x004E4942

	headerSize = 12
	chunkAlign = 4
)

// ComponentType identifies the scalar storage type of an accessor.
type ComponentType uint32

const (
	ComponentByte          ComponentType = 5120
	ComponentUnsignedByte  ComponentType = 5121
	ComponentShort         ComponentType = 5122
	ComponentUnsignedShort ComponentType = 5123
	ComponentUnsignedInt   ComponentType = 5125
	ComponentFloat         ComponentType = 5126
)

// Size returns the byte width of one component, or 0 for unknown types.
func (c ComponentType) Size() int {
	switch c {
	case ComponentByte, ComponentUnsignedByte:
		return 1
	case ComponentShort, ComponentUnsignedShort:
		return 2
	case ComponentUnsignedInt, ComponentFloat:
		return 4
	}
	return 0
}

// Accessor element types.
const (
	TypeScalar = "SCALAR"
	TypeVec2   = "VEC2"
	TypeVec3   = "VEC3"
	TypeVec4   = "VEC4"
	TypeMat2   = "MAT2"
	TypeMat3   = "MAT3"
	TypeMat4   = "MAT4"
)

// ComponentCount returns the number of components per element for an
// accessor type string, or 0 for unknown types.
func ComponentCount(accessorType string) int {
	switch accessorType {
	case TypeScalar:
		return 1
	case TypeVec2:
		return 2
	case TypeVec3:
		return 3
	case TypeVec4:
		return 4
	case TypeMat2:
		return 4
	case TypeMat3:
		return 9
	case TypeMat4:
		return 16
	}
	return 0
}

// Primitive modes.
const (
	ModePoints        = 0
	ModeLines         = 1
	ModeLineLoop      = 2
	ModeLineStrip     = 3
	ModeTriangles     = 4
	ModeTriangleStrip = 5
	ModeTriangleFan   = 6
)

// BufferView targets.
const (
	TargetArrayBuffer        = 34962
	TargetElementArrayBuffer = 34963
)

// Extension names emitted by the writer.
const (
	ExtMeshQuantization  = "KHR_mesh_quantization"
	ExtMeshoptCompression = "EXT_meshopt_compression"
)

// Document is the JSON chunk of a glTF 2.0 asset.
type Document struct {
	ExtensionsUsed     []string        `json:"extensionsUsed,omitempty"`
	ExtensionsRequired []string        `json:"extensionsRequired,omitempty"`
	Accessors          []Accessor      `json:"accessors,omitempty"`
	Animations         []Animation     `json:"animations,omitempty"`
	Asset              AssetInfo       `json:"asset"`
	Buffers            []Buffer        `json:"buffers,omitempty"`
	BufferViews        []BufferView    `json:"bufferViews,omitempty"`
	Cameras            json.RawMessage `json:"cameras,omitempty"`
	Images             []Image         `json:"images,omitempty"`
	Materials          []Material      `json:"materials,omitempty"`
	Meshes             []Mesh          `json:"meshes,omitempty"`
	Nodes              []Node          `json:"nodes,omitempty"`
	Samplers           json.RawMessage `json:"samplers,omitempty"`
	Scene              *int            `json:"scene,omitempty"`
	Scenes             json.RawMessage `json:"scenes,omitempty"`
	Skins              []Skin          `json:"skins,omitempty"`
	Textures           []Texture       `json:"textures,omitempty"`
	Extensions         RawExtensions   `json:"extensions,omitempty"`
	Extras             json.RawMessage `json:"extras,omitempty"`
}

// AssetInfo is the mandatory asset descriptor.
type AssetInfo struct {
	Copyright  string `json:"copyright,omitempty"`
	Generator  string `json:"generator,omitempty"`
	Version    string `json:"version"`
	MinVersion string `json:"minVersion,omitempty"`
}

// RawExtensions preserves extension objects we do not interpret.
type RawExtensions map[string]json.RawMessage

// Accessor is a typed, counted view into a bufferView.
type Accessor struct {
	BufferView    *int          `json:"bufferView,omitempty"`
	ByteOffset    int           `json:"byteOffset,omitempty"`
	ComponentType ComponentType `json:"componentType"`
	Normalized    bool          `json:"normalized,omitempty"`
	Count         int           `json:"count"`
	Type          string        `json:"type"`
	Max           []float32     `json:"max,omitempty"`
	Min           []float32     `json:"min,omitempty"`
	Sparse        json.RawMessage `json:"sparse,omitempty"`
	Name          string        `json:"name,omitempty"`
	Extensions    RawExtensions `json:"extensions,omitempty"`
}

// ElementSize returns the tightly packed byte width of one element.
func (a *Accessor) ElementSize() int {
	return a.ComponentType.Size() * ComponentCount(a.Type)
}

// Buffer describes a byte blob; buffer 0 of a GLB has no URI.
type Buffer struct {
	URI        string `json:"uri,omitempty"`
	ByteLength int    `json:"byteLength"`
	Name       string `json:"name,omitempty"`
}

// BufferView is a byte range inside a buffer.
type BufferView struct {
	Buffer     int           `json:"buffer"`
	ByteOffset int           `json:"byteOffset,omitempty"`
	ByteLength int           `json:"byteLength"`
	ByteStride int           `json:"byteStride,omitempty"`
	Target     int           `json:"target,omitempty"`
	Name       string        `json:"name,omitempty"`
	Extensions RawExtensions `json:"extensions,omitempty"`
}

// MeshoptCompression is the EXT_meshopt_compression bufferView extension
// object. The container view describes the compressed bytes; this object
// repeats their byte range and adds the stride, element count and mode of
// the logical uncompressed stream.
type MeshoptCompression struct {
	Buffer     int    `json:"buffer"`
	ByteOffset int    `json:"byteOffset,omitempty"`
	ByteLength int    `json:"byteLength"`
	ByteStride int    `json:"byteStride"`
	Count      int    `json:"count"`
	Mode       string `json:"mode"`
	Filter     string `json:"filter,omitempty"`
}

// Compression modes for EXT_meshopt_compression.
const (
	MeshoptModeTriangles  = "TRIANGLES"
	MeshoptModeAttributes = "ATTRIBUTES"
)

// Mesh is a named list of primitives.
type Mesh struct {
	Primitives []Primitive     `json:"primitives"`
	Weights    []float32       `json:"weights,omitempty"`
	Name       string          `json:"name,omitempty"`
	Extensions RawExtensions   `json:"extensions,omitempty"`
	Extras     json.RawMessage `json:"extras,omitempty"`
}

// Primitive is one draw call: attribute accessors, optional indices and
// material.
type Primitive struct {
	Attributes map[string]int  `json:"attributes"`
	Indices    *int            `json:"indices,omitempty"`
	Material   *int            `json:"material,omitempty"`
	Mode       *int            `json:"mode,omitempty"`
	Targets    json.RawMessage `json:"targets,omitempty"`
	Extensions RawExtensions   `json:"extensions,omitempty"`
}

// ModeOrDefault returns the primitive mode, defaulting to triangles.
func (p *Primitive) ModeOrDefault() int {
	if p.Mode == nil {
		return ModeTriangles
	}
	return *p.Mode
}

// Attribute names the pipeline recognizes; anything else passes through.
const (
	AttrPosition  = "POSITION"
	AttrNormal    = "NORMAL"
	AttrTangent   = "TANGENT"
	AttrTexCoord0 = "TEXCOORD_0"
	AttrTexCoord1 = "TEXCOORD_1"
	AttrTexCoord2 = "TEXCOORD_2"
	AttrTexCoord3 = "TEXCOORD_3"
	AttrColor0    = "COLOR_0"
	AttrJoints0   = "JOINTS_0"
	AttrWeights0  = "WEIGHTS_0"
)

// Material carries the texture bindings the importance analyzer samples.
type Material struct {
	Name                 string            `json:"name,omitempty"`
	PBRMetallicRoughness *PBRMetallicRoughness `json:"pbrMetallicRoughness,omitempty"`
	NormalTexture        *NormalTextureInfo    `json:"normalTexture,omitempty"`
	OcclusionTexture     *OcclusionTextureInfo `json:"occlusionTexture,omitempty"`
	EmissiveTexture      *TextureInfo          `json:"emissiveTexture,omitempty"`
	EmissiveFactor       []float32             `json:"emissiveFactor,omitempty"`
	AlphaMode            string                `json:"alphaMode,omitempty"`
	AlphaCutoff          *float32              `json:"alphaCutoff,omitempty"`
	DoubleSided          bool                  `json:"doubleSided,omitempty"`
	Extensions           RawExtensions         `json:"extensions,omitempty"`
	Extras               json.RawMessage       `json:"extras,omitempty"`
}

// PBRMetallicRoughness is the core material model.
type PBRMetallicRoughness struct {
	BaseColorFactor          []float32    `json:"baseColorFactor,omitempty"`
	BaseColorTexture         *TextureInfo `json:"baseColorTexture,omitempty"`
	MetallicFactor           *float32     `json:"metallicFactor,omitempty"`
	RoughnessFactor          *float32     `json:"roughnessFactor,omitempty"`
	MetallicRoughnessTexture *TextureInfo `json:"metallicRoughnessTexture,omitempty"`
}

// TextureInfo references a texture and the UV set it samples.
type TextureInfo struct {
	Index      int           `json:"index"`
	TexCoord   int           `json:"texCoord,omitempty"`
	Extensions RawExtensions `json:"extensions,omitempty"`
}

// NormalTextureInfo adds the normal-map scale.
type NormalTextureInfo struct {
	Index      int           `json:"index"`
	TexCoord   int           `json:"texCoord,omitempty"`
	Scale      *float32      `json:"scale,omitempty"`
	Extensions RawExtensions `json:"extensions,omitempty"`
}

// OcclusionTextureInfo adds the occlusion strength.
type OcclusionTextureInfo struct {
	Index      int           `json:"index"`
	TexCoord   int           `json:"texCoord,omitempty"`
	Strength   *float32      `json:"strength,omitempty"`
	Extensions RawExtensions `json:"extensions,omitempty"`
}

// Texture binds an image to a sampler.
type Texture struct {
	Sampler    *int          `json:"sampler,omitempty"`
	Source     *int          `json:"source,omitempty"`
	Name       string        `json:"name,omitempty"`
	Extensions RawExtensions `json:"extensions,omitempty"`
}

// Image is either bufferView-backed or a data URI.
type Image struct {
	URI        string        `json:"uri,omitempty"`
	MimeType   string        `json:"mimeType,omitempty"`
	BufferView *int          `json:"bufferView,omitempty"`
	Name       string        `json:"name,omitempty"`
	Extensions RawExtensions `json:"extensions,omitempty"`
}

// Node places meshes in the scene graph. TRS components are pointers so
// the writer can tell "absent" from "explicit default".
type Node struct {
	Camera      *int            `json:"camera,omitempty"`
	Children    []int           `json:"children,omitempty"`
	Skin        *int            `json:"skin,omitempty"`
	Matrix      []float32       `json:"matrix,omitempty"`
	Mesh        *int            `json:"mesh,omitempty"`
	Rotation    []float32       `json:"rotation,omitempty"`
	Scale       []float32       `json:"scale,omitempty"`
	Translation []float32       `json:"translation,omitempty"`
	Weights     []float32       `json:"weights,omitempty"`
	Name        string          `json:"name,omitempty"`
	Extensions  RawExtensions   `json:"extensions,omitempty"`
	Extras      json.RawMessage `json:"extras,omitempty"`
}

// Animation retargets accessors over time; the optimizer only remaps its
// accessor indices.
type Animation struct {
	Channels []AnimationChannel `json:"channels"`
	Samplers []AnimationSampler `json:"samplers"`
	Name     string             `json:"name,omitempty"`
}

// AnimationChannel routes a sampler to a node property.
type AnimationChannel struct {
	Sampler int                    `json:"sampler"`
	Target  AnimationChannelTarget `json:"target"`
}

// AnimationChannelTarget names the animated node and path.
type AnimationChannelTarget struct {
	Node *int   `json:"node,omitempty"`
	Path string `json:"path"`
}

// AnimationSampler pairs input keyframe times with output values.
type AnimationSampler struct {
	Input         int    `json:"input"`
	Output        int    `json:"output"`
	Interpolation string `json:"interpolation,omitempty"`
}

// Skin binds joints with inverse bind matrices.
type Skin struct {
	InverseBindMatrices *int   `json:"inverseBindMatrices,omitempty"`
	Skeleton            *int   `json:"skeleton,omitempty"`
	Joints              []int  `json:"joints"`
	Name                string `json:"name,omitempty"`
}
