package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	meshreduce "github.com/playsaurus-inc/mesh-reduce"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize <input.glb> [output.glb]",
	Short: "Optimize a GLB and emit its LOD chain",
	Long: `Optimize runs the full pipeline over a glTF-Binary asset. The first
LOD level is written to the output path; additional levels get a _lodN
suffix. If no output path is given, the input filename with an
"_opt.glb" suffix is used.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runOptimize,
}

var (
	optConfig       string
	optLODLevels    []float32
	optTextureAware bool
	optPositionBits int
	optNoCompress   bool
	optNoQuantize   bool
	optTextureScale float32
	optThreshold    float32
)

func init() {
	optimizeCmd.Flags().StringVar(&optConfig, "config", "", "TOML options file")
	optimizeCmd.Flags().Float32SliceVar(&optLODLevels, "lod", nil, "LOD ratios in (0,1], e.g. --lod 1.0,0.5,0.25")
	optimizeCmd.Flags().BoolVar(&optTextureAware, "texture-aware", false, "Protect visually salient regions during simplification")
	optimizeCmd.Flags().IntVar(&optPositionBits, "position-bits", 0, "Position quantization bits (8 or 16)")
	optimizeCmd.Flags().BoolVar(&optNoCompress, "no-compress", false, "Skip meshopt compression")
	optimizeCmd.Flags().BoolVar(&optNoQuantize, "no-quantize", false, "Skip attribute quantization")
	optimizeCmd.Flags().Float32Var(&optTextureScale, "texture-scale", 0, "Resize textures by this factor in (0,1]")
	optimizeCmd.Flags().Float32Var(&optThreshold, "importance-threshold", 0, "Vertex lock threshold in [0,1]")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	inputFile := args[0]
	outputFile := ""
	if len(args) > 1 {
		outputFile = args[1]
	} else {
		base := strings.TrimSuffix(inputFile, filepath.Ext(inputFile))
		outputFile = base + "_opt.glb"
	}

	opts, err := loadOptions(optConfig)
	if err != nil {
		return err
	}
	if optLODLevels != nil {
		opts.LODLevels = optLODLevels
	}
	if optTextureAware {
		opts.TextureAware = true
	}
	if optPositionBits != 0 {
		opts.PositionBits = optPositionBits
	}
	if optNoCompress {
		opts.MeshoptCompression = false
	}
	if optNoQuantize {
		opts.QuantizePositions = false
		opts.QuantizeNormals = false
		opts.QuantizeUVs = false
		opts.QuantizeTangents = false
	}
	if optTextureScale != 0 {
		opts.TextureScale = optTextureScale
	}
	if optThreshold != 0 {
		opts.ImportanceThreshold = optThreshold
	}
	opts.Logger = meshreduce.NewDefaultLogger("meshreduce", verbose)

	data, err := os.ReadFile(inputFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputFile, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := meshreduce.OptimizeBytes(ctx, data, opts)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputFile, result.Output, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outputFile, err)
	}
	fmt.Printf("%s: %d -> %d bytes, %d -> %d triangles\n",
		outputFile, result.InputBytes, result.OutputBytes,
		result.InputTriangles, result.OutputTriangles)

	base := strings.TrimSuffix(outputFile, filepath.Ext(outputFile))
	for i, level := range result.Levels[1:] {
		path := fmt.Sprintf("%s_lod%d.glb", base, i+1)
		if err := os.WriteFile(path, level.GLB, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Printf("%s: ratio %.2f, %d triangles, %d bytes\n", path, level.Ratio, level.Triangles, len(level.GLB))
	}

	if len(result.Skipped) > 0 {
		fmt.Printf("degraded capabilities: %s\n", strings.Join(result.Skipped, ", "))
	}
	return nil
}
