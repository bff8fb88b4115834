package meshreduce

// Options controls one Optimize call. The toml tags are for the CLI's
// config file; the capability fields are only settable from code.
type Options struct {
	DeduplicateVertices bool `toml:"deduplicate_vertices"`
	OptimizeVertexCache bool `toml:"optimize_vertex_cache"`

	QuantizePositions bool `toml:"quantize_positions"`
	PositionBits      int  `toml:"position_bits"` // 8 or 16
	QuantizeNormals   bool `toml:"quantize_normals"`
	QuantizeUVs       bool `toml:"quantize_uvs"`
	QuantizeTangents  bool `toml:"quantize_tangents"`

	MeshoptCompression bool `toml:"meshopt_compression"`

	TextureAware        bool    `toml:"texture_aware"`
	ImportanceThreshold float32 `toml:"importance_threshold"` // [0,1]
	LODErrorThreshold   float32 `toml:"lod_error_threshold"`  // >= 0
	TextureScale        float32 `toml:"texture_scale"`        // (0,1]

	LODLevels []float32 `toml:"lod_levels"` // ratios in (0,1]

	Generator string `toml:"generator"`

	// Injected capabilities. Nil fields fall back to the bundled
	// implementations, so these fields cannot switch a capability off. A
	// capability that fails during the run degrades to the identity
	// transform and is reported on Result.Skipped.
	Logger     Logger     `toml:"-"`
	Simplifier Simplifier `toml:"-"`
	BufferCodec BufferCodec `toml:"-"`
	ImageCodec ImageCodec `toml:"-"`
}

// DefaultOptions mirrors the documented defaults.
func DefaultOptions() Options {
	return Options{
		DeduplicateVertices: true,
		OptimizeVertexCache: true,
		QuantizePositions:   true,
		PositionBits:        16,
		QuantizeNormals:     true,
		QuantizeUVs:         true,
		QuantizeTangents:    true,
		MeshoptCompression:  true,
		TextureAware:        false,
		ImportanceThreshold: 0.5,
		LODErrorThreshold:   0.02,
		TextureScale:        1.0,
		LODLevels:           []float32{1.0, 0.9, 0.8, 0.7, 0.5, 0.25},
		Generator:           "mesh-reduce",
	}
}

// normalize clamps option values into their documented domains.
func (o *Options) normalize() {
	if o.PositionBits != 8 {
		o.PositionBits = 16
	}
	if o.ImportanceThreshold < 0 {
		o.ImportanceThreshold = 0
	}
	if o.ImportanceThreshold > 1 {
		o.ImportanceThreshold = 1
	}
	if o.LODErrorThreshold < 0 {
		o.LODErrorThreshold = 0
	}
	if o.TextureScale <= 0 || o.TextureScale > 1 {
		o.TextureScale = 1
	}
	if len(o.LODLevels) == 0 {
		o.LODLevels = []float32{1.0}
	}
	levels := make([]float32, 0, len(o.LODLevels))
	for _, r := range o.LODLevels {
		if r > 0 && r <= 1 {
			levels = append(levels, r)
		}
	}
	if len(levels) == 0 {
		levels = []float32{1.0}
	}
	o.LODLevels = levels
}

func (o *Options) logger() Logger {
	if o.Logger == nil {
		return NewNopLogger()
	}
	return o.Logger
}
