// Package metrics defines the Prometheus metrics recorded while processing
// atom probe data.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IonsDecoded counts ions decoded from raw POS files (cache hits excluded).
	IonsDecoded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aptkit_ions_decoded_total",
			Help: "Total number of ions decoded from POS files",
		},
	)

	// CacheLookups counts snapshot lookups by result (hit, miss, stale, corrupt).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aptkit_cache_lookups_total",
			Help: "Cache snapshot lookups by result",
		},
		[]string{"result"},
	)

	// LoadDuration measures dataset loads by source (cache or decode).
	LoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aptkit_load_duration_seconds",
			Help:    "Duration of dataset loads in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	// IonsResolved counts element resolutions by outcome (known, unknown).
	IonsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aptkit_ions_resolved_total",
			Help: "Ions passed through element resolution by outcome",
		},
		[]string{"outcome"},
	)

	// NeighborQueries counts radius queries answered by the spatial index.
	NeighborQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aptkit_neighbor_queries_total",
			Help: "Total number of radius neighbor queries",
		},
	)
)

// WriteTextfile writes every registered metric to path in the text
// exposition format (node_exporter textfile collector compatible).
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
