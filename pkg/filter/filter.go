// Package filter provides ion selection over a dataset
package filter

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ChrisMcGann/aptkit/pkg/core"
)

// Config holds selection configuration
type Config struct {
	MaxIons int               // Keep only the first N ions in dataset order (0 = no limit)
	Species []string          // Keep only ions resolved to these symbols (nil = all)
	Box     *core.BoundingBox // Keep only ions inside this box (nil = no box)
}

// Apply returns the selected ion indices. symbols must be the resolved
// element of each ion (same length as ds.Ions) when Species is set, and may
// be nil otherwise. The atom-count limit is applied first, then the species
// and box filters.
func (c *Config) Apply(ds *core.Dataset, symbols []string) (*roaring.Bitmap, error) {
	n := ds.Len()
	if c.MaxIons > 0 && c.MaxIons < n {
		n = c.MaxIons
	}

	selected := roaring.New()
	selected.AddRange(0, uint64(n))

	// Filter by species
	if len(c.Species) > 0 {
		if len(symbols) != ds.Len() {
			return nil, fmt.Errorf("species filter needs %d resolved symbols, got %d", ds.Len(), len(symbols))
		}
		index := BuildSpeciesIndex(symbols)
		selected.And(index.Union(c.Species...))
	}

	// Filter by bounding box
	if c.Box != nil {
		inside := roaring.New()
		it := selected.Iterator()
		for it.HasNext() {
			i := it.Next()
			if c.Box.Contains(ds.Ions[i]) {
				inside.Add(i)
			}
		}
		selected = inside
	}

	return selected, nil
}

// ParseSpecies splits a comma-separated species list
func ParseSpecies(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SpeciesIndex maps element symbols to the set of ion indices resolved to them
type SpeciesIndex map[string]*roaring.Bitmap

// BuildSpeciesIndex groups ion indices by resolved symbol
func BuildSpeciesIndex(symbols []string) SpeciesIndex {
	index := make(SpeciesIndex)
	for i, sym := range symbols {
		bm, ok := index[sym]
		if !ok {
			bm = roaring.New()
			index[sym] = bm
		}
		bm.Add(uint32(i))
	}
	for _, bm := range index {
		bm.RunOptimize()
	}
	return index
}

// Union returns the ions belonging to any of the given species
func (s SpeciesIndex) Union(species ...string) *roaring.Bitmap {
	var sets []*roaring.Bitmap
	for _, sym := range species {
		if bm, ok := s[sym]; ok {
			sets = append(sets, bm)
		}
	}
	if len(sets) == 0 {
		return roaring.New()
	}
	return roaring.FastOr(sets...)
}

// SpeciesCount is the number of ions resolved to one symbol
type SpeciesCount struct {
	Symbol string
	Count  uint64
}

// Counts returns per-species counts, most abundant first; ties by symbol.
func (s SpeciesIndex) Counts() []SpeciesCount {
	out := make([]SpeciesCount, 0, len(s))
	for sym, bm := range s {
		out = append(out, SpeciesCount{Symbol: sym, Count: bm.GetCardinality()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Sample picks up to k distinct members of set uniformly at random, in the
// order drawn. The same rng seed always yields the same sample.
func Sample(set *roaring.Bitmap, k int, rng *rand.Rand) []int {
	n := int(set.GetCardinality())
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}

	// Floyd's algorithm over ranks, then map ranks back to members.
	chosen := make(map[int]struct{}, k)
	ranks := make([]int, 0, k)
	for j := n - k; j < n; j++ {
		r := rng.IntN(j + 1)
		if _, ok := chosen[r]; ok {
			r = j
		}
		chosen[r] = struct{}{}
		ranks = append(ranks, r)
	}

	out := make([]int, k)
	for i, r := range ranks {
		v, err := set.Select(uint32(r))
		if err != nil {
			// r < cardinality, so Select cannot fail.
			panic(err)
		}
		out[i] = int(v)
	}
	return out
}

// Indices expands a bitmap to a slice of ion indices in ascending order
func Indices(set *roaring.Bitmap) []int {
	out := make([]int, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}
