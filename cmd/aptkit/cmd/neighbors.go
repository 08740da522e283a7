package cmd

import (
	"fmt"
	"math/rand/v2"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/aptkit/pkg/core"
	"github.com/ChrisMcGann/aptkit/pkg/filter"
	"github.com/ChrisMcGann/aptkit/pkg/spatial"
	"github.com/ChrisMcGann/aptkit/pkg/spectrum"
)

// listedNeighbors is the number of neighbors printed per query ion
const listedNeighbors = 5

var (
	// Flags for neighbors command
	radius           float64
	numQueries       int
	numTargets       int
	distanceBins     int
	dims             int
	seed             uint64
	neighborsSpecies string
)

func init() {
	neighborsCmd.Flags().Float64Var(&radius, "radius", 0, "Radius to search for neighbors (default from config, 10)")
	neighborsCmd.Flags().IntVar(&numQueries, "queries", 0, "Number of random query ions (default from config, 5)")
	neighborsCmd.Flags().IntVar(&numTargets, "targets", 0, "Number of random target ions for the distance histogram (default from config, 1000)")
	neighborsCmd.Flags().IntVar(&distanceBins, "bins", 0, "Distance histogram bins (default from config, 50)")
	neighborsCmd.Flags().IntVar(&dims, "dims", 0, "Index dimensions: 2 (x,y) or 3 (x,y,z) (default from config, 2)")
	neighborsCmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed (default from config, 42)")
	neighborsCmd.Flags().StringVar(&neighborsSpecies, "species", "", "Only pick query and target ions of these elements (e.g. 'Al')")
}

var neighborsCmd = &cobra.Command{
	Use:   "neighbors [file.pos]",
	Short: "Find ions within a radius of random query ions",
	Long: `Index ion positions in a k-d tree and report the neighbors of randomly chosen
query ions, followed by a histogram of neighbor distances over many target ions.

Indexing uses x and y only by default; --dims 3 includes z.

Examples:
  aptkit neighbors data/run42.pos --radius 5
  aptkit neighbors data/run42.pos --dims 3 --species Al`,
	Args: cobra.ExactArgs(1),
	RunE: runNeighbors,
}

func runNeighbors(cmd *cobra.Command, args []string) error {
	opts := cfg.Neighbors
	if cmd.Flags().Changed("radius") {
		opts.Radius = radius
	}
	if cmd.Flags().Changed("queries") {
		opts.Queries = numQueries
	}
	if cmd.Flags().Changed("targets") {
		opts.Targets = numTargets
	}
	if cmd.Flags().Changed("bins") {
		opts.Bins = distanceBins
	}
	if cmd.Flags().Changed("dims") {
		opts.Dims = dims
	}
	if cmd.Flags().Changed("seed") {
		opts.Seed = seed
	}
	if !(opts.Radius > 0) {
		return &core.ValidationError{Field: "radius", Message: fmt.Sprintf("must be positive, got %g", opts.Radius)}
	}

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	ds, err := loadDataset(args[0])
	if err != nil {
		return err
	}

	index, err := spatial.FromIons(ds.Ions, spatial.Dims(opts.Dims))
	if err != nil {
		return err
	}

	// Candidate ions for queries and targets
	var (
		candidates *roaring.Bitmap
		symbols    []string
	)
	species := filter.ParseSpecies(neighborsSpecies)
	resolver, err := loadResolver()
	if err != nil {
		return err
	}
	if symbols, err = resolveSymbols(ctx, resolver, ds); err != nil {
		return err
	}
	if candidates, err = (&filter.Config{Species: species}).Apply(ds, symbols); err != nil {
		return err
	}
	if candidates.IsEmpty() {
		fmt.Fprintf(out, "No candidate ions in %s\n", args[0])
		return nil
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))

	// Query ions
	queryIdx := filter.Sample(candidates, opts.Queries, rng)
	results, err := index.QueryBatch(ctx, positions(ds, queryIdx, index.Dims()), opts.Radius, cfg.Neighbors.Workers)
	if err != nil {
		return err
	}

	for i, q := range queryIdx {
		pos := ds.Ions[q].Position(int(index.Dims()))
		found := results[i]
		fmt.Fprintf(out, "\nPoint %d (%s) at position %s\n", q, symbols[q], formatPosition(pos))
		fmt.Fprintf(out, "Found %d neighbors within %g units:\n", len(found), opts.Radius)
		for _, nb := range found[:min(listedNeighbors, len(found))] {
			fmt.Fprintf(out, "  Neighbor %d (%s) at position %s, distance %.6f\n",
				nb.Index, symbols[nb.Index], formatPosition(ds.Ions[nb.Index].Position(int(index.Dims()))), nb.Distance)
		}
		if len(found) > listedNeighbors {
			fmt.Fprintf(out, "  ... and %d more neighbors\n", len(found)-listedNeighbors)
		}
	}

	// Distance histogram over target ions
	targetIdx := filter.Sample(candidates, opts.Targets, rng)
	targets, err := index.QueryBatch(ctx, positions(ds, targetIdx, index.Dims()), opts.Radius, cfg.Neighbors.Workers)
	if err != nil {
		return err
	}

	var distances []float64
	atRadius := 0
	for _, found := range targets {
		for _, nb := range found {
			if nb.Distance >= opts.Radius {
				atRadius++
			}
			distances = append(distances, nb.Distance)
		}
	}

	r := spectrum.Range{Min: 0, Max: opts.Radius, Bins: opts.Bins}
	counts, err := spectrum.Counts(distances, r)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nDistance histogram for %d target particles (%d distances, %d at radius):\n",
		len(targetIdx), len(distances), atRadius)
	for i, c := range counts {
		fmt.Fprintf(out, "  %10.4f %d\n", r.Center(i), int(c))
	}

	return nil
}

// positions projects the selected ions to the index dimensions
func positions(ds *core.Dataset, indices []int, d spatial.Dims) [][]float64 {
	out := make([][]float64, len(indices))
	for i, idx := range indices {
		out[i] = ds.Ions[idx].Position(int(d))
	}
	return out
}
