package spectrum

import (
	"math"
	"testing"

	"github.com/ChrisMcGann/aptkit/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestCounts(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		r      Range
		want   []float64
	}{
		{
			name:   "one per bin",
			values: []float64{0.5, 1.5, 2.5},
			r:      Range{Min: 0, Max: 3, Bins: 3},
			want:   []float64{1, 1, 1},
		},
		{
			name:   "range max excluded",
			values: []float64{3},
			r:      Range{Min: 0, Max: 3, Bins: 3},
			want:   []float64{0, 0, 0},
		},
		{
			name:   "edges open the next bin",
			values: []float64{0, 1, 2},
			r:      Range{Min: 0, Max: 3, Bins: 3},
			want:   []float64{1, 1, 1},
		},
		{
			name:   "out of range and NaN dropped",
			values: []float64{-0.001, 3.5, math.NaN(), math.Inf(1), 2.999},
			r:      Range{Min: 0, Max: 3, Bins: 3},
			want:   []float64{0, 0, 1},
		},
		{
			name:   "no values",
			values: nil,
			r:      Range{Min: 0, Max: 1, Bins: 4},
			want:   []float64{0, 0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Counts(tt.values, tt.r)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCountsDefaultRange(t *testing.T) {
	got, err := Counts([]float64{0.07, 0.12, 0.13, 0.17, 124.99}, DefaultRange)
	require.NoError(t, err)
	require.Len(t, got, 2500)

	assert.Equal(t, 1.0, got[1])
	assert.Equal(t, 2.0, got[2])
	assert.Equal(t, 1.0, got[3])
	assert.Equal(t, 1.0, got[2499])
	assert.Equal(t, 5.0, floats.Sum(got))
}

func TestRangeValidate(t *testing.T) {
	for _, r := range []Range{
		{Min: 1, Max: 1, Bins: 1},
		{Min: 0, Max: 1, Bins: 0},
		{Min: math.NaN(), Max: 1, Bins: 1},
		{Min: 0, Max: math.Inf(1), Bins: 1},
	} {
		_, err := Counts(nil, r)
		var ve *core.ValidationError
		assert.ErrorAs(t, err, &ve, "%+v", r)
	}
}

func TestBuild(t *testing.T) {
	spec, err := Build("run", []float64{0.5, 1.5, 2.5, 7}, Range{Min: 0, Max: 3, Bins: 3})
	require.NoError(t, err)
	require.NoError(t, spec.Validate())

	assert.Equal(t, []float64{0.5, 1.5, 2.5}, spec.Centers())
	assert.Equal(t, []float64{1, 1, 1}, spec.Counts())
	assert.Equal(t, 4, spec.IonCount)
	assert.Equal(t, 3.0, spec.Total())
}

func TestCenterFormula(t *testing.T) {
	r := Range{Min: 10, Max: 20, Bins: 4}
	assert.Equal(t, 11.25, r.Center(0))
	assert.Equal(t, 18.75, r.Center(3))
	assert.Len(t, r.Edges(), 5)
}

func TestFromDataset(t *testing.T) {
	ds := &core.Dataset{Source: "run.pos", Ions: []core.Ion{{MZ: 27.01}, {MZ: 27.02}, {MZ: 56.01}}}

	spec, err := FromDataset("run", ds, DefaultRange)
	require.NoError(t, err)
	assert.Equal(t, "run.pos", spec.SourceFile)
	assert.Equal(t, 2.0, spec.Bins[540].Count) // [27.00, 27.05)
	assert.Equal(t, 1.0, spec.Bins[1120].Count)
}

func TestNormalized(t *testing.T) {
	got, err := Normalized([]float64{0, 2, 8, 4})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.25, 1, 0.5}, got)

	_, err = Normalized([]float64{0, 0})
	assert.Error(t, err)
	_, err = Normalized(nil)
	assert.Error(t, err)
}
