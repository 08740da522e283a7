package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/aptkit/pkg/cache"
	"github.com/ChrisMcGann/aptkit/pkg/filter"
	"github.com/ChrisMcGann/aptkit/pkg/spectrum"
	"github.com/ChrisMcGann/aptkit/pkg/writer/sqlite"
	"github.com/ChrisMcGann/aptkit/pkg/writer/xyz"
)

// previewIons is the number of ions printed by convert
const previewIons = 10

var (
	// Flags for convert command
	numAtoms       int
	convertSpecies string
	xyzOutput      string
	xyzComment     string
	skipXYZ        bool
	skipSpectrum   bool
)

func init() {
	convertCmd.Flags().IntVarP(&numAtoms, "num-atoms", "n", 0, "Export only the first N atoms (0 = all)")
	convertCmd.Flags().StringVar(&convertSpecies, "species", "", "Comma-separated element symbols to export (e.g. 'Al,Fe')")
	convertCmd.Flags().StringVarP(&xyzOutput, "out", "o", "", "XYZ output path (default <xyz dir>/<name>.xyz)")
	convertCmd.Flags().StringVar(&xyzComment, "comment", xyz.DefaultComment, "Comment line written to the XYZ file")
	convertCmd.Flags().BoolVar(&skipXYZ, "no-xyz", false, "Skip the XYZ export")
	convertCmd.Flags().BoolVar(&skipSpectrum, "no-spectrum", false, "Skip the mass spectrum")
}

var convertCmd = &cobra.Command{
	Use:   "convert [file.pos]",
	Short: "Convert a POS file to XYZ and a mass spectrum",
	Long: `Decode a POS file (through the cache), identify each ion's element, export
ion positions as XYZ and store the mass spectrum in the spectrum library.

Examples:
  # Convert with default settings
  aptkit convert data/run42.pos

  # Export only the first 10000 Al and Fe atoms
  aptkit convert data/run42.pos -n 10000 --species Al,Fe`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	inputFile := args[0]
	out := cmd.OutOrStdout()

	ds, err := loadDataset(inputFile)
	if err != nil {
		return err
	}

	resolver, err := loadResolver()
	if err != nil {
		return err
	}
	symbols, err := resolveSymbols(cmd.Context(), resolver, ds)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Loaded %d ions from %s", ds.Len(), inputFile)
	if ds.Cached {
		fmt.Fprintf(out, " (cached)")
	}
	fmt.Fprintln(out)

	// Preview
	fmt.Fprintf(out, "\nFirst %d ions:\n", min(previewIons, ds.Len()))
	for i, ion := range ds.Head(previewIons) {
		fmt.Fprintf(out, "  %-8s %.6f %.6f %.6f %.6f\n", symbols[i], ion.X, ion.Y, ion.Z, ion.MZ)
	}

	// Export XYZ
	if !skipXYZ {
		selection := &filter.Config{
			MaxIons: numAtoms,
			Species: filter.ParseSpecies(convertSpecies),
		}
		selected, err := selection.Apply(ds, symbols)
		if err != nil {
			return err
		}

		indices := filter.Indices(selected)
		atoms := make([]xyz.Atom, len(indices))
		for i, idx := range indices {
			ion := ds.Ions[idx]
			atoms[i] = xyz.Atom{Symbol: symbols[idx], X: ion.X, Y: ion.Y, Z: ion.Z}
		}

		path := xyzOutput
		if path == "" {
			path = cfg.XYZPath(inputFile)
		}
		if err := xyz.WriteFile(path, atoms, xyzComment); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nXYZ: %d atoms written to %s\n", len(atoms), path)
	}

	// Mass spectrum
	if !skipSpectrum {
		spec, err := spectrum.FromDataset(cache.Key(inputFile), ds, cfg.SpectrumRange())
		if err != nil {
			return err
		}

		dbPath := cfg.SpectrumDBPath()
		writer, err := sqlite.NewWriter(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open spectrum library: %w", err)
		}
		defer writer.Close()

		if err := writer.WriteSpectrum(spec); err != nil {
			return fmt.Errorf("failed to write spectrum %s: %w", spec.Name, err)
		}
		if err := writer.Finalize(); err != nil {
			return fmt.Errorf("failed to finalize spectrum library: %w", err)
		}
		fmt.Fprintf(out, "Spectrum: %s (%.0f of %d ions in range) stored in %s\n",
			spec, spec.Total(), spec.IonCount, dbPath)
	}

	// Bounding box
	if box, err := ds.Bounds(); err == nil {
		fmt.Fprintf(out, "\n%s\n", box)
	}

	return nil
}
