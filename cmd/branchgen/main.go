package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"galway/internal/olive"
)

func main() {
	n := flag.Int("n", 1, "number of branches to generate")
	format := flag.String("format", "svg", "output format: svg or json")
	seed := flag.Uint64("seed", 0, "random seed (0 uses a time-seeded source)")
	shuffle := flag.String("shuffle", string(olive.ShuffleUniform), "olive placement shuffle: uniform or comparator")
	outDir := flag.String("out", "", "write one file per branch into this directory instead of stdout")
	flag.Parse()

	if err := run(os.Stdout, *n, *format, *seed, *shuffle, *outDir); err != nil {
		fmt.Fprintln(os.Stderr, "branchgen:", err)
		os.Exit(1)
	}
}

func run(w io.Writer, n int, format string, seed uint64, shuffle, outDir string) error {
	if n < 1 {
		return fmt.Errorf("-n must be at least 1")
	}
	switch format {
	case "svg", "json":
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	mode, ok := olive.ParseShuffleMode(shuffle)
	if !ok {
		return fmt.Errorf("unknown shuffle %q", shuffle)
	}

	var gen *olive.Generator
	if seed != 0 {
		gen = olive.NewSeeded(seed, olive.WithShuffle(mode))
	} else {
		gen = olive.Default(olive.WithShuffle(mode))
	}
	branches := gen.GenerateN(n)

	if outDir != "" {
		return writeFiles(w, outDir, format, branches)
	}

	if format == "svg" {
		for _, b := range branches {
			fmt.Fprintf(w, "<!-- #%s %d x %s (%s) -->\n%s\n", b.ShortID(), b.OliveCount, b.OliveType, b.Rarity.Overall(), b.SVG)
		}
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if n == 1 {
		return enc.Encode(branches[0])
	}
	return enc.Encode(branches)
}

// writeFiles stores one file per branch and prints each path to w.
func writeFiles(w io.Writer, dir, format string, branches []olive.BranchArtifact) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i, b := range branches {
		body := []byte(b.SVG)
		if format == "json" {
			var err error
			if body, err = json.MarshalIndent(b, "", "  "); err != nil {
				return err
			}
		}
		name := filepath.Join(dir, fmt.Sprintf("branch-%03d-%s.%s", i+1, b.ShortID(), format))
		if err := os.WriteFile(name, body, 0o644); err != nil {
			return err
		}
		fmt.Fprintln(w, name)
	}
	return nil
}
