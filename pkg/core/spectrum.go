package core

import (
	"fmt"
	"math"
	"strings"
)

// MassSpectrum is a fixed-width histogram of mass/charge values.
type MassSpectrum struct {
	Name     string  // Logical name, usually the source file without extension
	RangeMin float64 // Lower edge of the first bin (inclusive)
	RangeMax float64 // Upper edge of the last bin (exclusive)
	Bins     []Bin
	IonCount int // Number of values offered to the histogram, in range or not

	// Internal tracking
	SourceFile string
	Accession  string
}

// Bin is one histogram bin: its center and the number of values counted.
type Bin struct {
	Center float64
	Count  float64
}

// Width returns the bin width
func (s *MassSpectrum) Width() float64 {
	if len(s.Bins) == 0 {
		return 0
	}
	return (s.RangeMax - s.RangeMin) / float64(len(s.Bins))
}

// Centers returns the bin centers in order
func (s *MassSpectrum) Centers() []float64 {
	out := make([]float64, len(s.Bins))
	for i, b := range s.Bins {
		out[i] = b.Center
	}
	return out
}

// Counts returns the bin counts in order
func (s *MassSpectrum) Counts() []float64 {
	out := make([]float64, len(s.Bins))
	for i, b := range s.Bins {
		out[i] = b.Count
	}
	return out
}

// Total returns the number of values that fell inside the range.
func (s *MassSpectrum) Total() float64 {
	total := 0.0
	for _, b := range s.Bins {
		total += b.Count
	}
	return total
}

// Validate checks that a spectrum is well formed.
func (s *MassSpectrum) Validate() error {
	var errs []string

	if s.Name == "" {
		errs = append(errs, "name is required")
	}
	if math.IsNaN(s.RangeMin) || math.IsNaN(s.RangeMax) || !(s.RangeMax > s.RangeMin) {
		errs = append(errs, "range max must be greater than range min")
	}
	if len(s.Bins) == 0 {
		errs = append(errs, "at least one bin is required")
	}

	for i, bin := range s.Bins {
		if math.IsNaN(bin.Center) || math.IsInf(bin.Center, 0) {
			errs = append(errs, fmt.Sprintf("bin %d has invalid center", i))
		}
		if math.IsNaN(bin.Count) || bin.Count < 0 {
			errs = append(errs, fmt.Sprintf("bin %d count must be non-negative", i))
		}
	}

	if !s.AreBinsSorted() {
		errs = append(errs, "bins must be sorted by center")
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "MassSpectrum",
			Message: strings.Join(errs, "; "),
		}
	}

	return nil
}

// AreBinsSorted checks if bins are in strictly ascending center order.
func (s *MassSpectrum) AreBinsSorted() bool {
	for i := 1; i < len(s.Bins); i++ {
		if s.Bins[i].Center <= s.Bins[i-1].Center {
			return false
		}
	}
	return true
}

// String returns the spectrum name with its range and bin count
func (s *MassSpectrum) String() string {
	return fmt.Sprintf("%s [%g, %g) Da, %d bins", s.Name, s.RangeMin, s.RangeMax, len(s.Bins))
}
