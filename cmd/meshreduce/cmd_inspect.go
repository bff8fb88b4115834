package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/playsaurus-inc/mesh-reduce/gltf"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <input.glb>",
	Short: "Print geometry statistics for a GLB",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	asset, err := gltf.Parse(data)
	if err != nil {
		return err
	}

	stats := asset.Stats()
	fmt.Printf("meshes:      %d\n", stats.Meshes)
	fmt.Printf("primitives:  %d\n", stats.Primitives)
	fmt.Printf("vertices:    %d\n", stats.Vertices)
	fmt.Printf("triangles:   %d\n", stats.Triangles)
	fmt.Printf("animations:  %d\n", stats.Animations)
	fmt.Printf("skins:       %d\n", stats.Skins)
	fmt.Printf("images:      %d\n", stats.Images)
	for mi, tris := range stats.TrianglesPerMesh {
		name := ""
		if mi < len(asset.Doc.Meshes) {
			name = asset.Doc.Meshes[mi].Name
		}
		fmt.Printf("  mesh %d (%s): %d triangles\n", mi, name, tris)
	}
	for _, warning := range asset.Warnings {
		fmt.Printf("warning: %s\n", warning)
	}
	return nil
}
