// Package cache persists decoded ion datasets as compressed snapshots keyed
// by source file name and validated against the source modification time.
package cache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ChrisMcGann/aptkit/pkg/core"
)

// Extension is appended to the source base name to form the snapshot name.
const Extension = ".apc"

// Snapshot layout (little-endian):
//
//	[magic "APC1"][codec u8][reserved 3][count u64][crc32 u32][payload len u64][payload]
//
// The uncompressed payload is count*4 float64 values in x, y, z, m/z order.
const (
	magic      = "APC1"
	headerSize = 4 + 4 + 8 + 4 + 8
	valueSize  = 8
	ionSize    = 4 * valueSize
)

// ErrCorrupt is returned when a snapshot cannot be parsed or fails its checksum.
var ErrCorrupt = errors.New("corrupt cache snapshot")

// Status describes the outcome of a cache lookup.
type Status int

const (
	// Miss means no snapshot exists for the source.
	Miss Status = iota
	// Hit means a fresh snapshot was read.
	Hit
	// Stale means a snapshot exists but is not newer than the source.
	Stale
	// Corrupt means a fresh-looking snapshot could not be read.
	Corrupt
)

func (s Status) String() string {
	switch s {
	case Hit:
		return "hit"
	case Stale:
		return "stale"
	case Corrupt:
		return "corrupt"
	default:
		return "miss"
	}
}

// Store reads and writes snapshots in a single directory.
type Store struct {
	dir         string
	compression Compression
	logger      *slog.Logger
}

// NewStore creates a snapshot store rooted at dir. A nil logger discards output.
func NewStore(dir string, compression Compression, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		dir:         dir,
		compression: compression,
		logger:      logger,
	}
}

// Dir returns the cache directory
func (s *Store) Dir() string {
	return s.dir
}

// EnsureDir creates the cache directory if it does not exist. It is
// idempotent.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	return nil
}

// Key derives the cache key for a source path: the base name without its
// extension.
func Key(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Path returns the snapshot path for a source file.
func (s *Store) Path(source string) string {
	return filepath.Join(s.dir, Key(source)+Extension)
}

// Lookup returns the cached ions for source if a snapshot exists whose
// modification time is strictly after sourceMod. Stale and corrupt snapshots
// are reported through the status with a nil error; only unexpected I/O
// failures return an error.
func (s *Store) Lookup(source string, sourceMod time.Time) ([]core.Ion, Status, error) {
	path := s.Path(source)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Miss, nil
		}
		return nil, Miss, fmt.Errorf("failed to stat cache snapshot: %w", err)
	}

	if !info.ModTime().After(sourceMod) {
		s.logger.Debug("cache snapshot is stale",
			"snapshot", path,
			"snapshot_mtime", info.ModTime(),
			"source_mtime", sourceMod,
		)
		return nil, Stale, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, Miss, fmt.Errorf("failed to open cache snapshot: %w", err)
	}
	defer f.Close()

	ions, err := readSnapshot(f)
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			s.logger.Warn("ignoring unreadable cache snapshot", "snapshot", path, "error", err)
			return nil, Corrupt, nil
		}
		return nil, Miss, fmt.Errorf("failed to read cache snapshot: %w", err)
	}

	return ions, Hit, nil
}

// Save writes a snapshot for source. The snapshot is written to a temporary
// file in the cache directory and renamed into place, so readers never see
// a partial snapshot.
func (s *Store) Save(source string, ions []core.Ion) error {
	if err := s.EnsureDir(); err != nil {
		return err
	}

	path := s.Path(source)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := writeSnapshot(tmp, ions, s.compression); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	committed = true

	s.logger.Debug("cache snapshot saved",
		"snapshot", path,
		"ions", len(ions),
		"compression", s.compression.String(),
	)
	return nil
}

func encodePayload(ions []core.Ion) []byte {
	buf := make([]byte, len(ions)*ionSize)
	for i, ion := range ions {
		off := i * ionSize
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(ion.X))
		binary.LittleEndian.PutUint64(buf[off+8:], math.Float64bits(ion.Y))
		binary.LittleEndian.PutUint64(buf[off+16:], math.Float64bits(ion.Z))
		binary.LittleEndian.PutUint64(buf[off+24:], math.Float64bits(ion.MZ))
	}
	return buf
}

func decodePayload(buf []byte, count int) []core.Ion {
	ions := make([]core.Ion, count)
	for i := range ions {
		off := i * ionSize
		ions[i] = core.Ion{
			X:  math.Float64frombits(binary.LittleEndian.Uint64(buf[off:])),
			Y:  math.Float64frombits(binary.LittleEndian.Uint64(buf[off+8:])),
			Z:  math.Float64frombits(binary.LittleEndian.Uint64(buf[off+16:])),
			MZ: math.Float64frombits(binary.LittleEndian.Uint64(buf[off+24:])),
		}
	}
	return ions
}

func writeSnapshot(w io.Writer, ions []core.Ion, c Compression) error {
	raw := encodePayload(ions)
	payload, err := compress(c, raw)
	if err != nil {
		return fmt.Errorf("failed to compress snapshot: %w", err)
	}

	var hdr [headerSize]byte
	copy(hdr[0:4], magic)
	hdr[4] = byte(c)
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(len(ions)))
	binary.LittleEndian.PutUint32(hdr[16:20], crc32.ChecksumIEEE(raw))
	binary.LittleEndian.PutUint64(hdr[20:28], uint64(len(payload)))

	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("failed to write snapshot header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write snapshot payload: %w", err)
	}
	return nil
}

func readSnapshot(r io.Reader) ([]core.Ion, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: short header", ErrCorrupt)
		}
		return nil, err
	}
	if string(hdr[0:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, hdr[0:4])
	}

	c := Compression(hdr[4])
	count := binary.LittleEndian.Uint64(hdr[8:16])
	sum := binary.LittleEndian.Uint32(hdr[16:20])
	payloadLen := binary.LittleEndian.Uint64(hdr[20:28])

	const maxIons = math.MaxInt / ionSize
	if count > maxIons {
		return nil, fmt.Errorf("%w: ion count %d out of range", ErrCorrupt, count)
	}

	if payloadLen > math.MaxInt64 {
		return nil, fmt.Errorf("%w: payload length %d out of range", ErrCorrupt, payloadLen)
	}
	var payload bytes.Buffer
	if _, err := io.CopyN(&payload, r, int64(payloadLen)); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: payload truncated", ErrCorrupt)
		}
		return nil, err
	}

	size := int(count) * ionSize
	raw, err := decompress(c, payload.Bytes(), size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(raw) != size {
		return nil, fmt.Errorf("%w: payload is %d bytes, want %d", ErrCorrupt, len(raw), size)
	}
	if crc32.ChecksumIEEE(raw) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	return decodePayload(raw, int(count)), nil
}
