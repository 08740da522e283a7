// Package spatial answers radius-bounded neighbor queries over ion positions
// using a k-d tree.
package spatial

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/ChrisMcGann/aptkit/pkg/core"
	"github.com/ChrisMcGann/aptkit/pkg/metrics"
)

// Dims selects the position subspace used for indexing.
type Dims int

const (
	// Planar indexes x and y only (areal neighbor analysis).
	Planar Dims = 2
	// Volume indexes x, y and z.
	Volume Dims = 3
)

// Valid reports whether d is a supported dimensionality
func (d Dims) Valid() bool {
	return d == Planar || d == Volume
}

// Neighbor is one query match: the ion index and its Euclidean distance.
type Neighbor struct {
	Index    int
	Distance float64
}

// Index is an immutable k-d tree over point positions. It is safe for
// concurrent queries.
type Index struct {
	tree *kdtree.Tree
	dims Dims
	n    int
}

// FromIons indexes the first dims coordinates of every ion. The ion's
// position in the slice becomes its neighbor index. Ions with a NaN or
// infinite indexed coordinate are left out; they are never within a finite
// distance of anything.
func FromIons(ions []core.Ion, dims Dims) (*Index, error) {
	if !dims.Valid() {
		return nil, fmt.Errorf("unsupported dimensionality %d, must be 2 or 3", dims)
	}

	pts := make(points, 0, len(ions))
	for i, ion := range ions {
		pos := ion.Position(int(dims))
		if !finite(pos) {
			continue
		}
		pts = append(pts, point{id: i, coords: pos})
	}
	return build(pts, dims), nil
}

// New indexes arbitrary points. Every point must have length 2 or 3 and all
// must share the same length. Non-finite points are skipped as in FromIons.
func New(coords [][]float64) (*Index, error) {
	if len(coords) == 0 {
		return &Index{dims: Planar}, nil
	}

	dims := Dims(len(coords[0]))
	if !dims.Valid() {
		return nil, fmt.Errorf("unsupported dimensionality %d, must be 2 or 3", dims)
	}

	pts := make(points, 0, len(coords))
	for i, c := range coords {
		if len(c) != int(dims) {
			return nil, fmt.Errorf("point %d has %d coordinates, want %d", i, len(c), dims)
		}
		if !finite(c) {
			continue
		}
		pts = append(pts, point{id: i, coords: append(kdtree.Point(nil), c...)})
	}
	return build(pts, dims), nil
}

// finite reports whether every coordinate is a real number. A NaN would
// break the median partitioning the tree is built on.
func finite(coords []float64) bool {
	for _, c := range coords {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func build(pts points, dims Dims) *Index {
	idx := &Index{dims: dims, n: len(pts)}
	if len(pts) > 0 {
		idx.tree = kdtree.New(pts, false)
	}
	return idx
}

// Len returns the number of indexed points, non-finite points excluded
func (ix *Index) Len() int {
	return ix.n
}

// Dims returns the indexed dimensionality
func (ix *Index) Dims() Dims {
	return ix.dims
}

// Query returns every indexed point within radius of q (distance <= radius),
// ordered by distance then index. An empty result is not an error; a query
// point with a NaN or infinite coordinate always gets one.
func (ix *Index) Query(q []float64, radius float64) ([]Neighbor, error) {
	if len(q) != int(ix.dims) {
		return nil, fmt.Errorf("query has %d coordinates, index has %d", len(q), ix.dims)
	}
	if math.IsNaN(radius) || radius < 0 {
		return nil, fmt.Errorf("radius must be non-negative, got %v", radius)
	}

	metrics.NeighborQueries.Inc()
	if ix.tree == nil || !finite(q) {
		return nil, nil
	}

	// point.Distance is squared Euclidean, so the bound is radius².
	keep := newRadiusKeeper(radius * radius)
	ix.tree.NearestSet(keep, point{id: -1, coords: kdtree.Point(q)})

	out := make([]Neighbor, 0, len(keep.kept))
	for _, c := range keep.kept {
		out = append(out, Neighbor{
			Index:    c.Comparable.(point).id,
			Distance: math.Sqrt(c.Dist),
		})
	}
	slices.SortFunc(out, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	return out, nil
}

// QueryIon queries around the position of an ion, projected to the index's dims.
func (ix *Index) QueryIon(ion core.Ion, radius float64) ([]Neighbor, error) {
	return ix.Query(ion.Position(int(ix.dims)), radius)
}

// QueryBatch runs Query for every point using up to workers goroutines
// (GOMAXPROCS if workers <= 0). Result i belongs to queries[i].
func (ix *Index) QueryBatch(ctx context.Context, queries [][]float64, radius float64, workers int) ([][]Neighbor, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([][]Neighbor, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, q := range queries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := ix.Query(q, radius)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			out[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
