// Package spectrum builds fixed-width histograms of mass/charge values and
// other scalar series.
package spectrum

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/ChrisMcGann/aptkit/pkg/core"
)

// Range describes a binned interval [Min, Max) split into Bins equal bins.
type Range struct {
	Min  float64
	Max  float64
	Bins int
}

// DefaultRange is 0 to 125 Da at 20 bins per Da.
var DefaultRange = Range{Min: 0, Max: 125, Bins: 125 * 20}

// Validate checks that the range can be binned
func (r Range) Validate() error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0) {
		return &core.ValidationError{Field: "Range", Message: "bounds must be finite"}
	}
	if !(r.Max > r.Min) {
		return &core.ValidationError{Field: "Range", Message: fmt.Sprintf("max %g must be greater than min %g", r.Max, r.Min)}
	}
	if r.Bins <= 0 {
		return &core.ValidationError{Field: "Range", Message: fmt.Sprintf("bin count must be positive, got %d", r.Bins)}
	}
	return nil
}

// Edges returns the Bins+1 bin edges from Min to Max.
func (r Range) Edges() []float64 {
	return floats.Span(make([]float64, r.Bins+1), r.Min, r.Max)
}

// Center returns the center of bin i.
func (r Range) Center(i int) float64 {
	return r.Min + (float64(i)+0.5)*(r.Max-r.Min)/float64(r.Bins)
}

// Counts histograms values into r. A value belongs to bin i when
// edge[i] <= v < edge[i+1]; values outside [Min, Max) and NaN are dropped.
func Counts(values []float64, r Range) ([]float64, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	edges := r.Edges()
	counts := make([]float64, r.Bins)
	for _, v := range values {
		if !(v >= r.Min && v < r.Max) {
			continue
		}
		// First edge >= v; an exact edge hit belongs to the bin it opens.
		i := sort.SearchFloat64s(edges, v)
		if i == len(edges) || edges[i] != v {
			i--
		}
		if i >= r.Bins {
			i = r.Bins - 1
		}
		counts[i]++
	}
	return counts, nil
}

// Build histograms mass/charge values into a named MassSpectrum.
func Build(name string, values []float64, r Range) (*core.MassSpectrum, error) {
	counts, err := Counts(values, r)
	if err != nil {
		return nil, err
	}

	spec := &core.MassSpectrum{
		Name:     name,
		RangeMin: r.Min,
		RangeMax: r.Max,
		Bins:     make([]core.Bin, r.Bins),
		IonCount: len(values),
	}
	for i, c := range counts {
		spec.Bins[i] = core.Bin{Center: r.Center(i), Count: c}
	}
	return spec, nil
}

// FromDataset builds the mass spectrum of every ion in ds.
func FromDataset(name string, ds *core.Dataset, r Range) (*core.MassSpectrum, error) {
	spec, err := Build(name, ds.MassToCharge(), r)
	if err != nil {
		return nil, err
	}
	spec.SourceFile = ds.Source
	return spec, nil
}

// Normalized returns counts scaled so the largest is 1. An all-zero input
// returns an error.
func Normalized(counts []float64) ([]float64, error) {
	if len(counts) == 0 {
		return nil, fmt.Errorf("no counts to normalize")
	}
	peak := floats.Max(counts)
	if !(peak > 0) {
		return nil, fmt.Errorf("cannot normalize: maximum count is %g", peak)
	}
	out := make([]float64, len(counts))
	for i, c := range counts {
		out[i] = c / peak
	}
	return out, nil
}
