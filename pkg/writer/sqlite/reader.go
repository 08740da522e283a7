package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/ChrisMcGann/aptkit/pkg/core"
)

// Reader reads spectra back from a spectrum library
type Reader struct {
	db *sql.DB
}

// Open opens an existing spectrum library read-only
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.NotFound(path)
		}
		return nil, fmt.Errorf("failed to stat database: %w", err)
	}

	dsn, err := fileDSN(path, "ro")
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Reader{db: db}, nil
}

// fileDSN builds an SQLite URI filename for path. The path is made absolute
// and percent-encoded, so '?' and '#' in it are not read as query or fragment.
func fileDSN(path, mode string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve database path: %w", err)
	}
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(abs),
		RawQuery: url.Values{"mode": {mode}}.Encode(),
	}
	return u.String(), nil
}

// ReadSpectra returns up to limit spectra in insertion order (limit <= 0 = all)
func (r *Reader) ReadSpectra(limit int) ([]*core.MassSpectrum, error) {
	query := `
		SELECT Name, SourceFile, Accession, RangeMin, RangeMax, IonCount, blobMass, blobIntensity
		FROM SpectrumTable ORDER BY SpectrumId`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query spectra: %w", err)
	}
	defer rows.Close()

	var out []*core.MassSpectrum
	for rows.Next() {
		var (
			spec              core.MassSpectrum
			source, accession sql.NullString
			massBlob, cntBlob []byte
		)
		if err := rows.Scan(&spec.Name, &source, &accession, &spec.RangeMin, &spec.RangeMax,
			&spec.IonCount, &massBlob, &cntBlob); err != nil {
			return nil, fmt.Errorf("failed to scan spectrum: %w", err)
		}
		spec.SourceFile = source.String
		spec.Accession = accession.String

		centers, err := decodeFloat64(massBlob)
		if err != nil {
			return nil, fmt.Errorf("spectrum %s: %w", spec.Name, err)
		}
		counts, err := decodeFloat64(cntBlob)
		if err != nil {
			return nil, fmt.Errorf("spectrum %s: %w", spec.Name, err)
		}
		if len(centers) != len(counts) {
			return nil, fmt.Errorf("spectrum %s: %d centers but %d counts", spec.Name, len(centers), len(counts))
		}

		spec.Bins = make([]core.Bin, len(centers))
		for i := range centers {
			spec.Bins[i] = core.Bin{Center: centers[i], Count: counts[i]}
		}
		out = append(out, &spec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading spectra: %w", err)
	}
	return out, nil
}

// Close closes the database
func (r *Reader) Close() error {
	return r.db.Close()
}
