// Package xyz writes ion positions in the XYZ text format read by molecular
// viewers: a count line, a comment line, then "<symbol> <x> <y> <z>" per atom.
package xyz

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultComment is written on the second line when none is given.
const DefaultComment = "APT ion positions"

// precision is the number of fractional digits written per coordinate.
const precision = 6

// Atom is one XYZ line
type Atom struct {
	Symbol  string
	X, Y, Z float64
}

// Write writes atoms in XYZ format. Newlines in the comment are replaced by
// spaces so the header stays two lines.
func Write(w io.Writer, atoms []Atom, comment string) error {
	if comment == "" {
		comment = DefaultComment
	}
	comment = strings.NewReplacer("\r", " ", "\n", " ").Replace(comment)

	bw := bufio.NewWriterSize(w, 1<<16)
	if _, err := fmt.Fprintf(bw, "%d\n%s\n", len(atoms), comment); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	line := make([]byte, 0, 64)
	for i, a := range atoms {
		if a.Symbol == "" {
			return fmt.Errorf("atom %d has no symbol", i)
		}
		line = append(line[:0], a.Symbol...)
		line = append(line, ' ')
		line = strconv.AppendFloat(line, a.X, 'f', precision, 64)
		line = append(line, ' ')
		line = strconv.AppendFloat(line, a.Y, 'f', precision, 64)
		line = append(line, ' ')
		line = strconv.AppendFloat(line, a.Z, 'f', precision, 64)
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return fmt.Errorf("failed to write atom %d: %w", i, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

// WriteFile writes atoms to path. Output goes to a temporary file in the
// same directory that is renamed over path only once fully written.
func WriteFile(path string, atoms []Atom, comment string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := Write(tmp, atoms, comment); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to publish %s: %w", path, err)
	}
	return nil
}
