// Package core provides the intermediate representation for atom probe data:
// ion records, isotope reference data, element resolution and mass spectra.
package core

import (
	"fmt"
	"math"
)

// RecordSize is the byte length of one ion in a POS file (4 big-endian float32).
const RecordSize = 16

// Ion is one reconstructed particle: position and mass/charge ratio in Da.
type Ion struct {
	X, Y, Z float64
	MZ      float64
}

// Position returns the first dims coordinates of the ion (2 for x,y; 3 for x,y,z).
func (i Ion) Position(dims int) []float64 {
	switch dims {
	case 2:
		return []float64{i.X, i.Y}
	default:
		return []float64{i.X, i.Y, i.Z}
	}
}

// Dataset is the ordered set of ions decoded from a single source file.
// The slice index is the ion's identity for the lifetime of the dataset.
type Dataset struct {
	Ions []Ion

	Source string // Path of the POS file
	Cached bool   // Loaded from a cache snapshot rather than decoded
}

// Len returns the number of ions.
func (d *Dataset) Len() int {
	return len(d.Ions)
}

// MassToCharge returns the mass/charge column in dataset order.
func (d *Dataset) MassToCharge() []float64 {
	out := make([]float64, len(d.Ions))
	for i, ion := range d.Ions {
		out[i] = ion.MZ
	}
	return out
}

// Head returns at most n leading ions. n <= 0 means all.
func (d *Dataset) Head(n int) []Ion {
	if n <= 0 || n >= len(d.Ions) {
		return d.Ions
	}
	return d.Ions[:n]
}

// BoundingBox is the axis-aligned extent of a set of ions.
type BoundingBox struct {
	Min, Max [3]float64
}

// Bounds computes the bounding box over x, y and z. NaN and infinite
// coordinates are skipped per axis. An empty dataset, or one with no finite
// value on some axis, returns an error.
func (d *Dataset) Bounds() (BoundingBox, error) {
	if len(d.Ions) == 0 {
		return BoundingBox{}, &ValidationError{Field: "Dataset", Message: "no ions"}
	}

	box := BoundingBox{
		Min: [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)},
		Max: [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}
	for _, ion := range d.Ions {
		p := [3]float64{ion.X, ion.Y, ion.Z}
		for k := 0; k < 3; k++ {
			if math.IsNaN(p[k]) || math.IsInf(p[k], 0) {
				continue
			}
			box.Min[k] = math.Min(box.Min[k], p[k])
			box.Max[k] = math.Max(box.Max[k], p[k])
		}
	}

	for k := 0; k < 3; k++ {
		if box.Min[k] > box.Max[k] {
			return BoundingBox{}, &ValidationError{Field: "Dataset", Message: "no finite ion positions"}
		}
	}
	return box, nil
}

// Contains reports whether the ion lies inside the box, edges included.
func (b BoundingBox) Contains(ion Ion) bool {
	p := [3]float64{ion.X, ion.Y, ion.Z}
	for k := 0; k < 3; k++ {
		if p[k] < b.Min[k] || p[k] > b.Max[k] {
			return false
		}
	}
	return true
}

// String formats the box the way the summary output prints it.
func (b BoundingBox) String() string {
	return fmt.Sprintf("X range: %.6f to %.6f\nY range: %.6f to %.6f\nZ range: %.6f to %.6f",
		b.Min[0], b.Max[0], b.Min[1], b.Max[1], b.Min[2], b.Max[2])
}
