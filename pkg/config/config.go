// Package config holds aptkit settings and workspace initialisation.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ChrisMcGann/aptkit/pkg/cache"
	"github.com/ChrisMcGann/aptkit/pkg/core"
	"github.com/ChrisMcGann/aptkit/pkg/spatial"
	"github.com/ChrisMcGann/aptkit/pkg/spectrum"
)

// SpectrumDB is the file name of the spectrum library inside the spectrum dir.
const SpectrumDB = "spectra.db"

// Config is the full aptkit configuration.
type Config struct {
	Paths     Paths     `yaml:"paths"`
	Cache     Cache     `yaml:"cache"`
	Spectrum  Spectrum  `yaml:"spectrum"`
	Resolver  Resolver  `yaml:"resolver"`
	Neighbors Neighbors `yaml:"neighbors"`
	Cloud     Cloud     `yaml:"cloud"`
}

// Paths are the workspace directories.
type Paths struct {
	CacheDir    string `yaml:"cache_dir"`
	XYZDir      string `yaml:"xyz_dir"`
	SpectrumDir string `yaml:"spectrum_dir"`
	DataDir     string `yaml:"data_dir"`
}

// Cache controls the decoded-dataset snapshots.
type Cache struct {
	Enabled     bool   `yaml:"enabled"`
	Compression string `yaml:"compression"` // none, lz4 or zstd
}

// Spectrum is the mass spectrum binning.
type Spectrum struct {
	RangeMin  float64 `yaml:"range_min"`
	RangeMax  float64 `yaml:"range_max"`
	BinsPerDa int     `yaml:"bins_per_da"`
}

// Resolver controls element identification.
type Resolver struct {
	Tolerance   float64 `yaml:"tolerance"`    // Relative, 0.1 = 10%
	IsotopesCSV string  `yaml:"isotopes_csv"` // Extra isotope entries (mass,symbol,label)
	Workers     int     `yaml:"workers"`      // 0 = GOMAXPROCS
}

// Neighbors controls the neighbor analysis.
type Neighbors struct {
	Radius  float64 `yaml:"radius"`
	Queries int     `yaml:"queries"`
	Targets int     `yaml:"targets"`
	Bins    int     `yaml:"bins"`
	Seed    uint64  `yaml:"seed"`
	Dims    int     `yaml:"dims"`
	Workers int     `yaml:"workers"`
}

// Cloud controls the point cloud.
type Cloud struct {
	Threshold float64 `yaml:"threshold"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir:    "cache",
			XYZDir:      "xyz",
			SpectrumDir: "mass_spectrum",
			DataDir:     "data",
		},
		Cache: Cache{
			Enabled:     true,
			Compression: "zstd",
		},
		Spectrum: Spectrum{
			RangeMin:  0,
			RangeMax:  125,
			BinsPerDa: 20,
		},
		Resolver: Resolver{
			Tolerance: core.DefaultTolerance,
		},
		Neighbors: Neighbors{
			Radius:  10,
			Queries: 5,
			Targets: 1000,
			Bins:    50,
			Seed:    42,
			Dims:    int(spatial.Planar),
		},
		Cloud: Cloud{
			Threshold: 0.01,
		},
	}
}

// Load reads a YAML file over the defaults using strict parsing. An empty
// path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, core.NotFound(path)
		}
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("YAML syntax error in config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return &core.ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
	}

	if _, err := cache.ParseCompression(c.Cache.Compression); err != nil {
		return invalid("cache.compression", "%v", err)
	}
	if c.Spectrum.BinsPerDa <= 0 {
		return invalid("spectrum.bins_per_da", "must be positive, got %d", c.Spectrum.BinsPerDa)
	}
	if err := c.SpectrumRange().Validate(); err != nil {
		return err
	}
	if math.IsNaN(c.Resolver.Tolerance) || c.Resolver.Tolerance <= 0 {
		return invalid("resolver.tolerance", "must be positive, got %g", c.Resolver.Tolerance)
	}
	if math.IsNaN(c.Neighbors.Radius) || c.Neighbors.Radius <= 0 {
		return invalid("neighbors.radius", "must be positive, got %g", c.Neighbors.Radius)
	}
	if c.Neighbors.Queries < 0 || c.Neighbors.Targets < 0 {
		return invalid("neighbors", "query and target counts must not be negative")
	}
	if c.Neighbors.Bins <= 0 {
		return invalid("neighbors.bins", "must be positive, got %d", c.Neighbors.Bins)
	}
	if !spatial.Dims(c.Neighbors.Dims).Valid() {
		return invalid("neighbors.dims", "must be 2 or 3, got %d", c.Neighbors.Dims)
	}
	if math.IsNaN(c.Cloud.Threshold) || c.Cloud.Threshold < 0 {
		return invalid("cloud.threshold", "must not be negative, got %g", c.Cloud.Threshold)
	}
	return nil
}

// SpectrumRange returns the histogram range for mass spectra.
func (c *Config) SpectrumRange() spectrum.Range {
	bins := int(math.Round((c.Spectrum.RangeMax - c.Spectrum.RangeMin) * float64(c.Spectrum.BinsPerDa)))
	return spectrum.Range{Min: c.Spectrum.RangeMin, Max: c.Spectrum.RangeMax, Bins: bins}
}

// SpectrumDBPath returns the spectrum library path.
func (c *Config) SpectrumDBPath() string {
	return filepath.Join(c.Paths.SpectrumDir, SpectrumDB)
}

// XYZPath returns the XYZ export path for a source file.
func (c *Config) XYZPath(source string) string {
	return filepath.Join(c.Paths.XYZDir, cache.Key(source)+".xyz")
}

// Compression returns the parsed cache codec.
func (c *Config) Compression() cache.Compression {
	comp, err := cache.ParseCompression(c.Cache.Compression)
	if err != nil {
		return cache.CompressionZSTD
	}
	return comp
}

// EnsureDirs creates the workspace directories. It is safe to call repeatedly.
func (c *Config) EnsureDirs() error {
	dirs := []string{c.Paths.XYZDir, c.Paths.SpectrumDir, c.Paths.DataDir}
	if c.Cache.Enabled {
		dirs = append(dirs, c.Paths.CacheDir)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
