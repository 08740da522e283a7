package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ChrisMcGann/aptkit/pkg/cache"
	"github.com/ChrisMcGann/aptkit/pkg/core"
	"github.com/ChrisMcGann/aptkit/pkg/loader"
	"github.com/ChrisMcGann/aptkit/pkg/metrics"
)

// customIsotopesFile is picked up from the working directory when present
const customIsotopesFile = "isotopes_custom.csv"

// loadDataset loads a POS file through the configured cache
func loadDataset(path string) (*core.Dataset, error) {
	var store *cache.Store
	if cfg.Cache.Enabled {
		store = cache.NewStore(cfg.Paths.CacheDir, cfg.Compression(), logger)
	}
	return loader.New(store, logger).Load(path)
}

// loadResolver builds the element resolver from the default isotope table,
// isotopes_custom.csv if it exists, and the configured isotopes CSV.
func loadResolver() (*core.Resolver, error) {
	table := core.DefaultIsotopeTable()

	// Load custom isotopes from isotopes_custom.csv if it exists
	if _, err := os.Stat(customIsotopesFile); err == nil {
		if err := loadIsotopesCSV(table, customIsotopesFile); err != nil {
			logger.Warn("failed to load custom isotopes", "path", customIsotopesFile, "error", err)
		}
	}

	if cfg.Resolver.IsotopesCSV != "" {
		if err := loadIsotopesCSV(table, cfg.Resolver.IsotopesCSV); err != nil {
			return nil, fmt.Errorf("failed to load isotopes CSV: %w", err)
		}
	}

	return core.NewResolver(table, cfg.Resolver.Tolerance), nil
}

func loadIsotopesCSV(table *core.IsotopeTable, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return table.LoadFromCSV(f)
}

// resolveSymbols resolves the element of every ion in dataset order
func resolveSymbols(ctx context.Context, resolver *core.Resolver, ds *core.Dataset) ([]string, error) {
	symbols, err := resolver.ResolveAll(ctx, ds.MassToCharge(), cfg.Resolver.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve elements: %w", err)
	}

	unknown := 0
	for _, s := range symbols {
		if s == core.UnknownElement {
			unknown++
		}
	}
	metrics.IonsResolved.WithLabelValues("known").Add(float64(len(symbols) - unknown))
	metrics.IonsResolved.WithLabelValues("unknown").Add(float64(unknown))
	logger.Debug("resolved elements", "ions", len(symbols), "unknown", unknown)

	return symbols, nil
}

// formatPosition prints coordinates with 6 decimals
func formatPosition(coords []float64) string {
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = fmt.Sprintf("%.6f", c)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
