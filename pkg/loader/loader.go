// Package loader loads ion datasets from POS files, going through the
// snapshot cache when one is configured.
package loader

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ChrisMcGann/aptkit/pkg/cache"
	"github.com/ChrisMcGann/aptkit/pkg/core"
	"github.com/ChrisMcGann/aptkit/pkg/metrics"
	"github.com/ChrisMcGann/aptkit/pkg/reader/pos"
)

// Loader turns POS file paths into datasets.
type Loader struct {
	store  *cache.Store
	logger *slog.Logger
}

// New creates a Loader. A nil store disables caching; a nil logger discards output.
func New(store *cache.Store, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{store: store, logger: logger}
}

// Load returns the dataset for path. A snapshot is used only if it is
// strictly newer than the source and holds exactly as many ions as the
// source length implies; otherwise the file is decoded and a new snapshot
// written. Failing to write the snapshot is logged, not returned.
func (l *Loader) Load(path string) (*core.Dataset, error) {
	start := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.NotFound(path)
		}
		return nil, fmt.Errorf("failed to stat input file: %w", err)
	}

	if l.store != nil && info.Mode().IsRegular() {
		if ds := l.fromCache(path, info); ds != nil {
			metrics.LoadDuration.WithLabelValues("cache").Observe(time.Since(start).Seconds())
			l.logger.Info("loaded from cache",
				"path", path,
				"ions", ds.Len(),
				"elapsed", time.Since(start),
			)
			return ds, nil
		}
	}

	ds, err := pos.ReadFile(path)
	if err != nil {
		return nil, err
	}
	metrics.IonsDecoded.Add(float64(ds.Len()))

	if l.store != nil {
		if err := l.store.Save(path, ds.Ions); err != nil {
			l.logger.Warn("failed to save cache snapshot", "path", path, "error", err)
		}
	}

	metrics.LoadDuration.WithLabelValues("decode").Observe(time.Since(start).Seconds())
	l.logger.Info("decoded POS file",
		"path", path,
		"ions", ds.Len(),
		"elapsed", time.Since(start),
	)
	return ds, nil
}

func (l *Loader) fromCache(path string, info os.FileInfo) *core.Dataset {
	ions, status, err := l.store.Lookup(path, info.ModTime())
	if err != nil {
		l.logger.Warn("cache lookup failed", "path", path, "error", err)
		status = cache.Miss
	}

	if status == cache.Hit && int64(len(ions))*core.RecordSize != info.Size() {
		l.logger.Warn("cache snapshot does not match source length",
			"path", path,
			"cached_ions", len(ions),
			"source_bytes", info.Size(),
		)
		status = cache.Stale
	}

	metrics.CacheLookups.WithLabelValues(status.String()).Inc()
	if status != cache.Hit {
		return nil
	}

	return &core.Dataset{Ions: ions, Source: path, Cached: true}
}
