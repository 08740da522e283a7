package cmd

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/aptkit/pkg/core"
	"github.com/ChrisMcGann/aptkit/pkg/reader/pos"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file.pos]",
	Short: "Validate POS file format and contents",
	Long: `Validate that a POS file is a whole number of 16-byte ion records and report
records holding NaN or infinite values. The cache is not consulted.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	inputFile := args[0]
	out := cmd.OutOrStdout()

	f, err := os.Open(inputFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.NotFound(inputFile)
		}
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	reader := pos.NewReader(f)
	nonFinite := 0
	firstBad := -1
	for reader.Next() {
		ion := reader.Ion()
		if !finite(ion.X) || !finite(ion.Y) || !finite(ion.Z) || !finite(ion.MZ) {
			if firstBad < 0 {
				firstBad = reader.Count() - 1
			}
			nonFinite++
		}
	}
	if err := reader.Err(); err != nil {
		var de *core.DecodeError
		if errors.As(err, &de) {
			de.Path = inputFile
		}
		return err
	}

	fmt.Fprintf(out, "File: %s\n", inputFile)
	fmt.Fprintf(out, "Records: %d (%d bytes)\n", reader.Count(), reader.Count()*core.RecordSize)
	if nonFinite > 0 {
		fmt.Fprintf(out, "Non-finite records: %d (first at ion %d)\n", nonFinite, firstBad)
		return &core.ValidationError{
			Field:   inputFile,
			Message: fmt.Sprintf("%d records hold NaN or infinite values", nonFinite),
		}
	}
	fmt.Fprintf(out, "OK\n")
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
