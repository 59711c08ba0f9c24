package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)

	assert.Equal(t, ":3000", c.Server.Addr)
	assert.Equal(t, "file", c.Storage.Forum.Driver)
	assert.Equal(t, 3, c.Registration.MaxAttempts)
	assert.Equal(t, 16, c.Inventory.ItemsPerPage)
	assert.Equal(t, 80, c.Inventory.MaxItems)
	assert.Equal(t, 10*time.Minute, c.Forum.ThreadCooldown())
	assert.Equal(t, time.Minute, c.Forum.ReplyCooldown())
	assert.Equal(t, 7*24*time.Hour, c.Auth.SessionTTL())
	assert.True(t, c.Forum.SeedThreads)
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "galway.yml")
	yml := `
version: "2"
server:
  addr: ":9000"
inventory:
  items_per_page: 8
  max_pages: 2
forum:
  banned_words: ["moss"]
  seed_threads: false
generator:
  seed: 11
  shuffle: comparator
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("GALWAY_DATA_DIR", "/tmp/galway")
	t.Setenv("GALWAY_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("GALWAY_CODE_MAX_ATTEMPTS", "not-a-number")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "2", c.Version)
	assert.Equal(t, ":9000", c.Server.Addr)
	assert.Equal(t, 16, c.Inventory.MaxItems)
	assert.Equal(t, []string{"moss"}, c.Forum.BannedWords)
	assert.False(t, c.Forum.SeedThreads)
	assert.Equal(t, uint64(11), c.Generator.Seed)
	assert.Equal(t, "comparator", c.Generator.Shuffle)
	assert.Equal(t, "/tmp/galway", c.Storage.DataDir)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.Server.CORSOrigins)
	assert.Equal(t, 5, c.Auth.MaxCodeAttempts)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
