package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/aptkit/pkg/cache"
	"github.com/ChrisMcGann/aptkit/pkg/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aptkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	r := cfg.SpectrumRange()
	assert.Equal(t, 0.0, r.Min)
	assert.Equal(t, 125.0, r.Max)
	assert.Equal(t, 2500, r.Bins)

	assert.Equal(t, 0.1, cfg.Resolver.Tolerance)
	assert.Equal(t, cache.CompressionZSTD, cfg.Compression())
	assert.Equal(t, filepath.Join("mass_spectrum", "spectra.db"), cfg.SpectrumDBPath())
	assert.Equal(t, filepath.Join("xyz", "run42.xyz"), cfg.XYZPath("data/run42.pos"))
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
cache:
  compression: lz4
neighbors:
  radius: 2.5
  dims: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cache.CompressionLZ4, cfg.Compression())
	assert.Equal(t, 2.5, cfg.Neighbors.Radius)
	assert.Equal(t, 3, cfg.Neighbors.Dims)
	assert.Equal(t, 5, cfg.Neighbors.Queries, "unset fields keep defaults")
	assert.Equal(t, "cache", cfg.Paths.CacheDir)
}

func TestLoadEmptyPathAndFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown field", "neighbors:\n  radious: 3\n"},
		{"bad codec", "cache:\n  compression: brotli\n"},
		{"bad dims", "neighbors:\n  dims: 4\n"},
		{"zero radius", "neighbors:\n  radius: 0\n"},
		{"inverted range", "spectrum:\n  range_min: 10\n  range_max: 5\n"},
		{"negative threshold", "cloud:\n  threshold: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestEnsureDirsIsIdempotent(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Paths = Paths{
		CacheDir:    filepath.Join(root, "cache"),
		XYZDir:      filepath.Join(root, "out", "xyz"),
		SpectrumDir: filepath.Join(root, "mass_spectrum"),
		DataDir:     filepath.Join(root, "data"),
	}

	require.NoError(t, cfg.EnsureDirs())
	require.NoError(t, cfg.EnsureDirs())

	for _, dir := range []string{cfg.Paths.CacheDir, cfg.Paths.XYZDir, cfg.Paths.SpectrumDir, cfg.Paths.DataDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
