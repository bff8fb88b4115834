package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	meshreduce "github.com/playsaurus-inc/mesh-reduce"
)

// loadOptions reads a TOML options file over the defaults. An empty
// path returns the defaults untouched.
func loadOptions(path string) (meshreduce.Options, error) {
	opts := meshreduce.DefaultOptions()
	if path == "" {
		return opts, nil
	}
	if _, err := os.Stat(path); err != nil {
		return opts, fmt.Errorf("config file: %w", err)
	}
	if _, err := toml.DecodeFile(path, &opts); err != nil {
		return opts, fmt.Errorf("parsing %s: %w", path, err)
	}
	return opts, nil
}
