package core

import (
	"math"
	"testing"
)

func TestMassSpectrumValidation(t *testing.T) {
	tests := []struct {
		name    string
		spec    *MassSpectrum
		wantErr bool
	}{
		{
			name: "valid spectrum",
			spec: &MassSpectrum{
				Name:     "R5083_01",
				RangeMin: 0,
				RangeMax: 2,
				Bins:     []Bin{{Center: 0.5, Count: 3}, {Center: 1.5, Count: 0}},
			},
			wantErr: false,
		},
		{
			name: "missing name",
			spec: &MassSpectrum{
				RangeMin: 0,
				RangeMax: 2,
				Bins:     []Bin{{Center: 0.5, Count: 3}},
			},
			wantErr: true,
		},
		{
			name: "inverted range",
			spec: &MassSpectrum{
				Name:     "run",
				RangeMin: 2,
				RangeMax: 0,
				Bins:     []Bin{{Center: 0.5, Count: 3}},
			},
			wantErr: true,
		},
		{
			name: "no bins",
			spec: &MassSpectrum{
				Name:     "run",
				RangeMin: 0,
				RangeMax: 2,
			},
			wantErr: true,
		},
		{
			name: "unsorted bins",
			spec: &MassSpectrum{
				Name:     "run",
				RangeMin: 0,
				RangeMax: 2,
				Bins:     []Bin{{Center: 1.5, Count: 1}, {Center: 0.5, Count: 1}},
			},
			wantErr: true,
		},
		{
			name: "NaN count",
			spec: &MassSpectrum{
				Name:     "run",
				RangeMin: 0,
				RangeMax: 1,
				Bins:     []Bin{{Center: 0.5, Count: math.NaN()}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMassSpectrumAccessors(t *testing.T) {
	spec := &MassSpectrum{
		Name:     "run",
		RangeMin: 0,
		RangeMax: 3,
		Bins:     []Bin{{Center: 0.5, Count: 1}, {Center: 1.5, Count: 2}, {Center: 2.5, Count: 4}},
	}

	if w := spec.Width(); w != 1 {
		t.Errorf("Width() = %v, want 1", w)
	}
	if total := spec.Total(); total != 7 {
		t.Errorf("Total() = %v, want 7", total)
	}

	centers := spec.Centers()
	counts := spec.Counts()
	for i, want := range []float64{0.5, 1.5, 2.5} {
		if centers[i] != want {
			t.Errorf("Centers()[%d] = %v, want %v", i, centers[i], want)
		}
	}
	for i, want := range []float64{1, 2, 4} {
		if counts[i] != want {
			t.Errorf("Counts()[%d] = %v, want %v", i, counts[i], want)
		}
	}
}

func TestMassSpectrumString(t *testing.T) {
	spec := &MassSpectrum{Name: "run", RangeMin: 0, RangeMax: 125, Bins: make([]Bin, 2500)}

	expected := "run [0, 125) Da, 2500 bins"
	if got := spec.String(); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}
