package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "meshreduce",
	Short: "Optimize glTF-Binary assets",
	Long: `meshreduce ingests a .glb asset and produces level-of-detail variants
with deduplicated, cache-reordered, quantized and meshopt-compressed
geometry. Material bindings, animations, skins and node transforms are
preserved.`,
	SilenceUsage: true,
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
