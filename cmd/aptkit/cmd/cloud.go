package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/aptkit/pkg/cloud"
	"github.com/ChrisMcGann/aptkit/pkg/core"
	"github.com/ChrisMcGann/aptkit/pkg/writer/sqlite"
	"github.com/ChrisMcGann/aptkit/pkg/writer/xyz"
)

var (
	// Flags for cloud command
	cloudThreshold float64
	cloudOutput    string
	spectrumDB     string
)

func init() {
	cloudCmd.Flags().Float64Var(&cloudThreshold, "threshold", 0, "Minimum normalised count on any axis (default from config, 0.01)")
	cloudCmd.Flags().StringVarP(&cloudOutput, "out", "o", "", "XYZ output path (default <xyz dir>/cloud.xyz)")
	cloudCmd.Flags().StringVar(&spectrumDB, "db", "", "Spectrum library (default <spectrum dir>/spectra.db)")
}

var cloudCmd = &cobra.Command{
	Use:   "cloud [name name name]",
	Short: "Build a 3D point cloud from three mass spectra",
	Long: `Correlate three mass spectra from the spectrum library. Each bin becomes a
point whose X, Y and Z are the bin's normalised counts in the three spectra,
labelled with the nearest element and the bin's mass/charge.

Without names the first three spectra in the library are used.

Examples:
  aptkit cloud
  aptkit cloud AlFe_run1 AlCu_run2 FeCu_run3 --threshold 0.05`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 3 {
			return fmt.Errorf("expected 0 or 3 spectrum names, got %d", len(args))
		}
		return nil
	},
	RunE: runCloud,
}

func runCloud(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	threshold := cfg.Cloud.Threshold
	if cmd.Flags().Changed("threshold") {
		threshold = cloudThreshold
	}

	dbPath := spectrumDB
	if dbPath == "" {
		dbPath = cfg.SpectrumDBPath()
	}

	reader, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	stored, err := reader.ReadSpectra(0)
	if err != nil {
		return err
	}

	spectra, err := pickSpectra(stored, args)
	if err != nil {
		return err
	}

	resolver, err := loadResolver()
	if err != nil {
		return err
	}

	pc, err := cloud.Build(spectra, threshold, resolver)
	if err != nil {
		return err
	}

	atoms := make([]xyz.Atom, len(pc.Points))
	for i, p := range pc.Points {
		atoms[i] = xyz.Atom{Symbol: p.Label, X: p.X, Y: p.Y, Z: p.Z}
	}

	path := cloudOutput
	if path == "" {
		path = filepath.Join(cfg.Paths.XYZDir, "cloud.xyz")
	}
	comment := fmt.Sprintf("%s %s %s", pc.Axes[0], pc.Axes[1], pc.Axes[2])
	if err := xyz.WriteFile(path, atoms, comment); err != nil {
		return err
	}

	fmt.Fprintf(out, "X axis: %s\n", cloud.AxisName(pc.Axes[0]))
	fmt.Fprintf(out, "Y axis: %s\n", cloud.AxisName(pc.Axes[1]))
	fmt.Fprintf(out, "Z axis: %s\n", cloud.AxisName(pc.Axes[2]))
	fmt.Fprintf(out, "Cloud: %d points written to %s\n", len(pc.Points), path)
	return nil
}

// pickSpectra returns the named spectra in the given order, or the stored
// spectra as-is when no names are given
func pickSpectra(stored []*core.MassSpectrum, names []string) ([]*core.MassSpectrum, error) {
	if len(names) == 0 {
		return stored, nil
	}

	byName := make(map[string]*core.MassSpectrum, len(stored))
	for _, s := range stored {
		byName[s.Name] = s
	}

	picked := make([]*core.MassSpectrum, 0, len(names))
	for _, name := range names {
		s, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("spectrum %q not found in library", name)
		}
		picked = append(picked, s)
	}
	return picked, nil
}
