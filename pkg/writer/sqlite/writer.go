// Package sqlite provides SQLite storage for mass spectrum artifacts
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ChrisMcGann/aptkit/pkg/core"
)

const (
	// Date format for HeaderTable (ISO 8601)
	headerDateFormat = "2006-01-02"
	// Date format for MaintenanceTable
	maintenanceDateFormat = "2006 01 02"
	// schemaVersion is stored in HeaderTable.version
	schemaVersion = 1
)

// Writer handles writing spectra to a SQLite spectrum library
type Writer struct {
	db           *sql.DB
	outputPath   string
	spectrumStmt *sql.Stmt
	written      int
	closed       bool
}

// NewWriter opens (or creates) the spectrum library at outputPath
func NewWriter(outputPath string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	dsn, err := fileDSN(outputPath, "rwc")
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// createTables creates the required database schema
func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS SpectrumTable (
		SpectrumId INTEGER PRIMARY KEY AUTOINCREMENT,
		Name TEXT NOT NULL UNIQUE,
		SourceFile TEXT,
		Accession TEXT,
		RangeMin DOUBLE,
		RangeMax DOUBLE,
		BinCount INTEGER,
		IonCount INTEGER,
		blobMass BLOB,
		blobIntensity BLOB,
		CreationDate TEXT
	);

	CREATE TABLE IF NOT EXISTS HeaderTable (
		version INTEGER NOT NULL DEFAULT 0,
		CreationDate TEXT,
		LastModifiedDate TEXT,
		Description TEXT
	);

	CREATE TABLE IF NOT EXISTS MaintenanceTable (
		CreationDate TEXT,
		NoofSpectraModified INTEGER,
		Description TEXT
	);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.spectrumStmt, err = w.db.Prepare(`
		INSERT INTO SpectrumTable (
			Name, SourceFile, Accession, RangeMin, RangeMax,
			BinCount, IonCount, blobMass, blobIntensity, CreationDate
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(Name) DO UPDATE SET
			SourceFile = excluded.SourceFile,
			Accession = excluded.Accession,
			RangeMin = excluded.RangeMin,
			RangeMax = excluded.RangeMax,
			BinCount = excluded.BinCount,
			IonCount = excluded.IonCount,
			blobMass = excluded.blobMass,
			blobIntensity = excluded.blobIntensity,
			CreationDate = excluded.CreationDate
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare spectrum statement: %w", err)
	}

	return nil
}

// WriteSpectrum writes a single spectrum, replacing any stored spectrum with
// the same name. Each write is its own transaction.
func (w *Writer) WriteSpectrum(spec *core.MassSpectrum) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	if spec.Accession == "" {
		spec.Accession = uuid.NewString()
	}

	// Encode bins as binary blobs (little-endian float64)
	massBlob := encodeFloat64(spec.Centers())
	countBlob := encodeFloat64(spec.Counts())

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	_, err = tx.Stmt(w.spectrumStmt).Exec(
		spec.Name,
		spec.SourceFile,
		spec.Accession,
		spec.RangeMin,
		spec.RangeMax,
		len(spec.Bins),
		spec.IonCount,
		massBlob,
		countBlob,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to insert spectrum: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit spectrum: %w", err)
	}

	w.written++
	return nil
}

// encodeFloat64 encodes values as a little-endian float64 blob
func encodeFloat64(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeFloat64 decodes a little-endian float64 blob
func decodeFloat64(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(buf))
	}
	out := make([]float64, len(buf)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return out, nil
}

// Finalize updates the header and maintenance tables and closes the database
func (w *Writer) Finalize() error {
	if w.closed {
		return nil
	}
	w.closed = true

	now := time.Now()

	// Write HeaderTable once, then only bump the modified date
	res, err := w.db.Exec(`UPDATE HeaderTable SET LastModifiedDate = ?`, now.Format(headerDateFormat))
	if err != nil {
		return fmt.Errorf("failed to update header: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err = w.db.Exec(`
			INSERT INTO HeaderTable (version, CreationDate, LastModifiedDate, Description)
			VALUES (?, ?, ?, ?)
		`, schemaVersion, now.Format(headerDateFormat), now.Format(headerDateFormat), "APT mass spectrum library")
		if err != nil {
			return fmt.Errorf("failed to insert header: %w", err)
		}
	}

	// Write MaintenanceTable
	if w.written > 0 {
		_, err = w.db.Exec(`
			INSERT INTO MaintenanceTable (CreationDate, NoofSpectraModified, Description)
			VALUES (?, ?, ?)
		`, now.Format(maintenanceDateFormat), w.written, "")
		if err != nil {
			return fmt.Errorf("failed to insert maintenance: %w", err)
		}
	}

	// Close prepared statements
	if w.spectrumStmt != nil {
		w.spectrumStmt.Close()
	}

	// Close database
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}
