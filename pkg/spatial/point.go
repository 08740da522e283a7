package spatial

import "gonum.org/v1/gonum/spatial/kdtree"

// point is a kdtree.Comparable that remembers which ion it came from.
type point struct {
	id     int
	coords kdtree.Point
}

func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coords[d] - c.(point).coords[d]
}

func (p point) Dims() int { return len(p.coords) }

// Distance is the squared Euclidean distance.
func (p point) Distance(c kdtree.Comparable) float64 {
	return p.coords.Distance(c.(point).coords)
}

// points implements kdtree.Interface.
type points []point

func (p points) Index(i int) kdtree.Comparable         { return p[i] }
func (p points) Len() int                              { return len(p) }
func (p points) Pivot(d kdtree.Dim) int                { return plane{points: p, Dim: d}.Pivot() }
func (p points) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane orders points along one dimension for median partitioning.
type plane struct {
	kdtree.Dim
	points
}

func (p plane) Less(i, j int) bool {
	return p.points[i].coords[p.Dim] < p.points[j].coords[p.Dim]
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.points[i], p.points[j] = p.points[j], p.points[i]
}

// radiusKeeper is a kdtree.Keeper that retains every point within a fixed
// squared distance. Max reports the bound itself, so the search prunes only
// subtrees lying wholly outside the radius and the retained set is exact.
type radiusKeeper struct {
	bound kdtree.ComparableDist
	kept  []kdtree.ComparableDist
}

func newRadiusKeeper(r2 float64) *radiusKeeper {
	return &radiusKeeper{
		// A non-nil Comparable keeps NearestSet from treating the bound as a
		// sentinel to pop.
		bound: kdtree.ComparableDist{Comparable: point{id: -1}, Dist: r2},
	}
}

func (k *radiusKeeper) Keep(c kdtree.ComparableDist) {
	if c.Dist <= k.bound.Dist {
		k.kept = append(k.kept, c)
	}
}

func (k *radiusKeeper) Max() kdtree.ComparableDist { return k.bound }

func (k *radiusKeeper) Len() int           { return len(k.kept) }
func (k *radiusKeeper) Less(i, j int) bool { return k.kept[i].Dist < k.kept[j].Dist }
func (k *radiusKeeper) Swap(i, j int)      { k.kept[i], k.kept[j] = k.kept[j], k.kept[i] }

func (k *radiusKeeper) Push(x any) {
	k.kept = append(k.kept, x.(kdtree.ComparableDist))
}

func (k *radiusKeeper) Pop() any {
	last := k.kept[len(k.kept)-1]
	k.kept = k.kept[:len(k.kept)-1]
	return last
}
