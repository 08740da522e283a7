package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/aptkit/pkg/filter"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file.pos]",
	Short: "Summarize a POS file",
	Long:  `Print the ion count, bounding box and per-element ion counts of a POS file.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

func runSummarize(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	ds, err := loadDataset(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "File: %s\n", args[0])
	fmt.Fprintf(out, "Ions: %d\n", ds.Len())
	if ds.Len() == 0 {
		return nil
	}

	if box, err := ds.Bounds(); err == nil {
		fmt.Fprintf(out, "%s\n", box)
	} else {
		logger.Warn("no bounding box", "path", args[0], "error", err)
	}

	resolver, err := loadResolver()
	if err != nil {
		return err
	}
	symbols, err := resolveSymbols(cmd.Context(), resolver, ds)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nSpecies:\n")
	for _, sc := range filter.BuildSpeciesIndex(symbols).Counts() {
		fmt.Fprintf(out, "  %-8s %d (%.2f%%)\n", sc.Symbol, sc.Count, 100*float64(sc.Count)/float64(ds.Len()))
	}
	return nil
}
