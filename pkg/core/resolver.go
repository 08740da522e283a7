package core

import (
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// DefaultTolerance is the relative tolerance applied when accepting a match.
const DefaultTolerance = 0.1

// resolveChunk is the number of values handled per worker task in ResolveAll.
const resolveChunk = 1 << 16

// Resolver maps mass/charge values to element symbols by nearest reference
// mass. It is built once from an IsotopeTable and is safe for concurrent use.
type Resolver struct {
	masses    []float64
	entries   []IsotopeEntry
	tolerance float64
}

// NewResolver snapshots the table into a sorted lookup structure. A
// tolerance <= 0 selects DefaultTolerance.
func NewResolver(table *IsotopeTable, tolerance float64) *Resolver {
	if table == nil {
		table = DefaultIsotopeTable()
	}
	if tolerance <= 0 || math.IsNaN(tolerance) {
		tolerance = DefaultTolerance
	}

	entries := table.Entries()
	masses := make([]float64, len(entries))
	for i, e := range entries {
		masses[i] = e.Mass
	}

	return &Resolver{
		masses:    masses,
		entries:   entries,
		tolerance: tolerance,
	}
}

// Tolerance returns the relative tolerance in use
func (r *Resolver) Tolerance() float64 {
	return r.tolerance
}

// Nearest returns the reference entry closest to mz regardless of tolerance.
// When two entries are equally close the lower mass wins. ok is false only
// for an empty table or a NaN input.
func (r *Resolver) Nearest(mz float64) (IsotopeEntry, bool) {
	if len(r.masses) == 0 || math.IsNaN(mz) {
		return IsotopeEntry{}, false
	}

	// i is the first mass >= mz; the candidates are i-1 and i.
	i := sort.SearchFloat64s(r.masses, mz)
	switch {
	case i == 0:
		return r.entries[0], true
	case i == len(r.masses):
		return r.entries[i-1], true
	}

	below, above := mz-r.masses[i-1], r.masses[i]-mz
	if above < below {
		return r.entries[i], true
	}
	return r.entries[i-1], true
}

// Match returns the nearest entry if it lies within tolerance*mz of mz.
// Non-positive values never match.
func (r *Resolver) Match(mz float64) (IsotopeEntry, bool) {
	if !(mz > 0) || math.IsInf(mz, 1) {
		return IsotopeEntry{}, false
	}

	e, ok := r.Nearest(mz)
	if !ok {
		return IsotopeEntry{}, false
	}
	if math.Abs(e.Mass-mz) > r.tolerance*mz {
		return IsotopeEntry{}, false
	}
	return e, true
}

// Resolve returns the element symbol for mz, or UnknownElement.
func (r *Resolver) Resolve(mz float64) string {
	if e, ok := r.Match(mz); ok {
		return e.Symbol
	}
	return UnknownElement
}

// ResolveAll resolves every value, preserving order and length. Work is
// split into fixed chunks across at most workers goroutines (GOMAXPROCS if
// workers <= 0); each chunk writes only its own slice of the output.
func (r *Resolver) ResolveAll(ctx context.Context, mzs []float64, workers int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]string, len(mzs))
	if len(mzs) <= resolveChunk {
		for i, mz := range mzs {
			out[i] = r.Resolve(mz)
		}
		return out, nil
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(mzs); start += resolveChunk {
		end := min(start+resolveChunk, len(mzs))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				out[i] = r.Resolve(mzs[i])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
