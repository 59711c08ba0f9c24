package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galway/internal/olive"
)

func TestRun_JSONIsReproducibleWithSeed(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, run(&a, 3, "json", 42, "uniform", ""))
	require.NoError(t, run(&b, 3, "json", 42, "uniform", ""))

	var first, second []olive.BranchArtifact
	require.NoError(t, json.Unmarshal(a.Bytes(), &first))
	require.NoError(t, json.Unmarshal(b.Bytes(), &second))
	require.Len(t, first, 3)
	for i := range first {
		assert.Equal(t, first[i].SVG, second[i].SVG)
		assert.Equal(t, first[i].OliveType, second[i].OliveType)
	}
}

func TestRun_SVGToStdout(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(&out, 2, "svg", 5, "comparator", ""))
	assert.Equal(t, 2, strings.Count(out.String(), "</svg>"))
}

func TestRun_WritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	var out bytes.Buffer
	require.NoError(t, run(&out, 2, "svg", 9, "uniform", dir))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	paths := strings.Fields(out.String())
	require.Len(t, paths, 2)
	for _, p := range paths {
		assert.True(t, strings.HasSuffix(p, ".svg"), p)
		assert.FileExists(t, p)
	}
}

func TestRun_WritesJSONFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "json")
	var out bytes.Buffer
	require.NoError(t, run(&out, 3, "json", 4, "uniform", dir))

	paths := strings.Fields(out.String())
	require.Len(t, paths, 3)
	for _, p := range paths {
		require.True(t, strings.HasSuffix(p, ".json"), p)
		b, err := os.ReadFile(p)
		require.NoError(t, err)
		var branch olive.BranchArtifact
		require.NoError(t, json.Unmarshal(b, &branch))
		assert.Contains(t, branch.SVG, "<svg")
	}
}

func TestRun_RejectsBadInput(t *testing.T) {
	assert.Error(t, run(&bytes.Buffer{}, 0, "svg", 1, "uniform", ""))
	assert.Error(t, run(&bytes.Buffer{}, 1, "png", 1, "uniform", ""))
	assert.Error(t, run(&bytes.Buffer{}, 1, "png", 1, "uniform", t.TempDir()))
	assert.Error(t, run(&bytes.Buffer{}, 1, "svg", 1, "bogus", ""))
}
