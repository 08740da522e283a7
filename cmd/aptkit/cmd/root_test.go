package cmd

import (
	"bufio"
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChrisMcGann/aptkit/pkg/core"
	"github.com/ChrisMcGann/aptkit/pkg/reader/pos"
	"github.com/ChrisMcGann/aptkit/pkg/writer/sqlite"
)

// workspace is a temporary aptkit working area with its own config file
type workspace struct {
	root   string
	config string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	root := t.TempDir()
	config := filepath.Join(root, "aptkit.yaml")
	body := "paths:\n" +
		"  cache_dir: " + filepath.Join(root, "cache") + "\n" +
		"  xyz_dir: " + filepath.Join(root, "xyz") + "\n" +
		"  spectrum_dir: " + filepath.Join(root, "mass_spectrum") + "\n" +
		"  data_dir: " + filepath.Join(root, "data") + "\n"
	require.NoError(t, os.WriteFile(config, []byte(body), 0o644))
	return &workspace{root: root, config: config}
}

// writePOS writes ions as a POS file with a modification time in the past,
// so a snapshot written afterwards is strictly newer.
func (w *workspace) writePOS(t *testing.T, name string, ions []core.Ion) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, pos.Encode(&buf, ions))
	path := filepath.Join(w.root, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))
	return path
}

func (w *workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--config", w.config}, args...))

	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default between executions
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// sampleIons are Al, Fe, Al and an unresolvable ion on a small patch
func sampleIons() []core.Ion {
	return []core.Ion{
		{X: 0, Y: 0, Z: 0, MZ: 27},
		{X: 1, Y: 0, Z: 5, MZ: 56},
		{X: 0, Y: 2, Z: -5, MZ: 27},
		{X: 30, Y: 30, Z: 0, MZ: 0},
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestConvert(t *testing.T) {
	w := newWorkspace(t)
	src := w.writePOS(t, "run42.pos", sampleIons())

	out, err := w.run(t, "convert", src)
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 4 ions from")
	assert.NotContains(t, out, "(cached)")
	assert.Contains(t, out, "Al       0.000000 0.000000 0.000000 27.000000")
	assert.Contains(t, out, "unknown  30.000000 30.000000 0.000000 0.000000")
	assert.Contains(t, out, "X range: 0.000000 to 30.000000")

	lines := readLines(t, filepath.Join(w.root, "xyz", "run42.xyz"))
	require.Len(t, lines, 6)
	assert.Equal(t, "4", lines[0])
	assert.Equal(t, "APT ion positions", lines[1])
	assert.Equal(t, "Fe 1.000000 0.000000 5.000000", lines[3])

	r, err := sqlite.Open(filepath.Join(w.root, "mass_spectrum", "spectra.db"))
	require.NoError(t, err)
	defer r.Close()
	spectra, err := r.ReadSpectra(0)
	require.NoError(t, err)
	require.Len(t, spectra, 1)
	assert.Equal(t, "run42", spectra[0].Name)
	assert.Len(t, spectra[0].Bins, 2500)
	assert.Equal(t, 4, spectra[0].IonCount)
	assert.Equal(t, 4.0, spectra[0].Total())

	_, err = os.Stat(filepath.Join(w.root, "cache", "run42.apc"))
	require.NoError(t, err)

	out, err = w.run(t, "convert", src)
	require.NoError(t, err)
	assert.Contains(t, out, "(cached)")
}

func TestConvertSelection(t *testing.T) {
	w := newWorkspace(t)
	src := w.writePOS(t, "run.pos", sampleIons())
	dest := filepath.Join(w.root, "selected.xyz")

	_, err := w.run(t, "convert", src, "-n", "2", "--species", "Al", "-o", dest, "--no-spectrum")
	require.NoError(t, err)

	lines := readLines(t, dest)
	require.Len(t, lines, 3)
	assert.Equal(t, "1", lines[0])
	assert.Equal(t, "Al 0.000000 0.000000 0.000000", lines[2])

	_, err = os.Stat(filepath.Join(w.root, "mass_spectrum", "spectra.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestConvertErrors(t *testing.T) {
	w := newWorkspace(t)

	_, err := w.run(t, "convert", filepath.Join(w.root, "missing.pos"))
	assert.ErrorIs(t, err, core.ErrNotFound)

	bad := filepath.Join(w.root, "bad.pos")
	require.NoError(t, os.WriteFile(bad, make([]byte, 17), 0o644))
	_, err = w.run(t, "convert", bad)
	assert.ErrorIs(t, err, core.ErrDecode)

	_, err = os.Stat(filepath.Join(w.root, "xyz", "bad.xyz"))
	assert.True(t, os.IsNotExist(err), "no export after a decode error")
}

func TestNeighbors(t *testing.T) {
	w := newWorkspace(t)
	src := w.writePOS(t, "run.pos", sampleIons())

	out, err := w.run(t, "neighbors", src, "--radius", "2", "--bins", "4")
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(out, "\nPoint "), "queries are capped at the ion count")
	assert.Contains(t, out, "Found 3 neighbors within 2 units:")
	assert.Contains(t, out, "Found 1 neighbors within 2 units:")
	// Self matches (4) plus 0-1 and 0-2 in both directions; 0-2 is exactly at the radius.
	assert.Contains(t, out, "Distance histogram for 4 target particles (8 distances, 2 at radius):")

	out, err = w.run(t, "neighbors", src, "--radius", "2", "--species", "Fe")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\nPoint "))
	assert.Contains(t, out, "Point 1 (Fe)")

	_, err = w.run(t, "neighbors", src, "--dims", "4")
	assert.Error(t, err)
}

func TestNeighborsVolume(t *testing.T) {
	w := newWorkspace(t)
	src := w.writePOS(t, "run.pos", sampleIons())

	out, err := w.run(t, "neighbors", src, "--radius", "2", "--dims", "3", "--species", "Fe")
	require.NoError(t, err)
	// Ion 1 sits at z=5, away from everything in 3D.
	assert.Contains(t, out, "Found 1 neighbors within 2 units:")
}

func TestCloud(t *testing.T) {
	w := newWorkspace(t)
	for _, name := range []string{"AlFe.pos", "AlCu.pos", "FeCu.pos"} {
		src := w.writePOS(t, name, sampleIons())
		_, err := w.run(t, "convert", src, "--no-xyz")
		require.NoError(t, err)
	}

	out, err := w.run(t, "cloud")
	require.NoError(t, err)
	assert.Contains(t, out, "X axis: Al\nY axis: Al\nZ axis: Fe\n")
	assert.Contains(t, out, "Cloud: 3 points")

	lines := readLines(t, filepath.Join(w.root, "xyz", "cloud.xyz"))
	require.Len(t, lines, 5)
	assert.Equal(t, "3", lines[0])
	assert.Equal(t, "AlFe AlCu FeCu", lines[1])

	_, err = w.run(t, "cloud", "AlFe", "AlCu", "nope")
	assert.Error(t, err)

	_, err = w.run(t, "cloud", "AlFe")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	w := newWorkspace(t)
	src := w.writePOS(t, "run.pos", sampleIons())

	out, err := w.run(t, "summarize", src)
	require.NoError(t, err)
	assert.Contains(t, out, "Ions: 4")
	assert.Contains(t, out, "Y range: 0.000000 to 30.000000")
	assert.Contains(t, out, "  Al       2 (50.00%)")
	assert.Contains(t, out, "  Fe       1 (25.00%)")
	assert.Contains(t, out, "  unknown  1 (25.00%)")
}

func TestValidate(t *testing.T) {
	w := newWorkspace(t)

	good := w.writePOS(t, "good.pos", sampleIons())
	out, err := w.run(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "Records: 4 (64 bytes)")
	assert.Contains(t, out, "OK")

	withNaN := sampleIons()
	withNaN[2].Y = math.NaN()
	nan := w.writePOS(t, "nan.pos", withNaN)
	out, err = w.run(t, "validate", nan)
	var ve *core.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Contains(t, out, "Non-finite records: 1 (first at ion 2)")

	truncated := filepath.Join(w.root, "short.pos")
	require.NoError(t, os.WriteFile(truncated, make([]byte, 40), 0o644))
	_, err = w.run(t, "validate", truncated)
	assert.ErrorIs(t, err, core.ErrDecode)
	assert.Contains(t, err.Error(), "short.pos")
}

func TestMetricsFile(t *testing.T) {
	w := newWorkspace(t)
	src := w.writePOS(t, "run.pos", sampleIons())
	metricsPath := filepath.Join(w.root, "aptkit.prom")

	_, err := w.run(t, "summarize", src, "--no-cache", "--metrics-file", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "aptkit_ions_decoded_total")
	assert.Contains(t, string(data), "aptkit_ions_resolved_total")

	_, err = os.Stat(filepath.Join(w.root, "cache"))
	assert.True(t, os.IsNotExist(err), "cache dir is not created with --no-cache")
}
