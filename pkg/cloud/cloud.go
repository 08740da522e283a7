// Package cloud correlates three mass spectra into a 3D point cloud: each
// bin becomes a point whose coordinates are the normalised counts of that
// bin in the three spectra.
package cloud

import (
	"fmt"

	"github.com/ChrisMcGann/aptkit/pkg/core"
	"github.com/ChrisMcGann/aptkit/pkg/spectrum"
)

// DefaultThreshold drops bins that are near zero in every spectrum.
const DefaultThreshold = 0.01

// Point is one bin of the cloud.
type Point struct {
	X, Y, Z float64 // Normalised counts in the first, second and third spectrum
	Da      float64 // Bin center
	Element string  // Nearest reference element
	Label   string  // Element and bin center, e.g. "Al_27.03"
}

// Cloud is the result of Build.
type Cloud struct {
	Axes   [3]string // Names of the spectra on X, Y and Z
	Points []Point
}

// Build correlates the first three spectra. They must have the same number
// of bins. A bin is kept when any of its normalised counts exceeds threshold.
func Build(spectra []*core.MassSpectrum, threshold float64, resolver *core.Resolver) (*Cloud, error) {
	if len(spectra) < 3 {
		return nil, &core.ValidationError{
			Field:   "Cloud",
			Message: fmt.Sprintf("need at least 3 spectra, got %d", len(spectra)),
		}
	}
	if resolver == nil {
		resolver = core.NewResolver(nil, 0)
	}

	var (
		c    Cloud
		axes [3][]float64
	)
	bins := len(spectra[0].Bins)
	for i, spec := range spectra[:3] {
		if len(spec.Bins) != bins {
			return nil, &core.ValidationError{
				Field:   "Cloud",
				Message: fmt.Sprintf("spectrum %s has %d bins, expected %d", spec.Name, len(spec.Bins), bins),
			}
		}
		norm, err := spectrum.Normalized(spec.Counts())
		if err != nil {
			return nil, fmt.Errorf("spectrum %s: %w", spec.Name, err)
		}
		axes[i] = norm
		c.Axes[i] = spec.Name
	}

	centers := spectra[0].Centers()
	for i, da := range centers {
		x, y, z := axes[0][i], axes[1][i], axes[2][i]
		if x <= threshold && y <= threshold && z <= threshold {
			continue
		}

		element := core.UnknownElement
		if entry, ok := resolver.Nearest(da); ok {
			element = entry.Symbol
		}
		c.Points = append(c.Points, Point{
			X: x, Y: y, Z: z,
			Da:      da,
			Element: element,
			Label:   fmt.Sprintf("%s_%.2f", element, da),
		})
	}

	return &c, nil
}

// AxisName shortens a spectrum name to its first two characters.
func AxisName(name string) string {
	r := []rune(name)
	if len(r) > 2 {
		r = r[:2]
	}
	return string(r)
}
