// Package pos provides decoding of atom probe POS files: a flat stream of
// big-endian float32 values, four per ion (x, y, z, mass/charge).
package pos

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ChrisMcGann/aptkit/pkg/core"
)

// Reader provides streaming access to POS data
type Reader struct {
	r       *bufio.Reader
	buf     [core.RecordSize]byte
	current core.Ion
	count   int
	err     error
}

// NewReader creates a new POS reader
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r: bufio.NewReaderSize(r, 1<<16),
	}
}

// Next advances to the next ion. Returns false at end of stream or on error.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}

	n, err := io.ReadFull(r.r, r.buf[:])
	switch {
	case err == io.EOF:
		return false
	case errors.Is(err, io.ErrUnexpectedEOF):
		r.err = &core.DecodeError{
			Size: int64(r.count*core.RecordSize + n),
			Err:  fmt.Errorf("trailing %d bytes do not form a complete record", n),
		}
		return false
	case err != nil:
		r.err = &core.DecodeError{Size: -1, Err: err}
		return false
	}

	r.current = decodeRecord(r.buf[:])
	r.count++
	return true
}

// Ion returns the current ion
func (r *Reader) Ion() core.Ion {
	return r.current
}

// Count returns the number of ions read so far
func (r *Reader) Count() int {
	return r.count
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// decodeRecord reads one 16-byte record in x, y, z, m/z order.
func decodeRecord(b []byte) core.Ion {
	return core.Ion{
		X:  float64(math.Float32frombits(binary.BigEndian.Uint32(b[0:4]))),
		Y:  float64(math.Float32frombits(binary.BigEndian.Uint32(b[4:8]))),
		Z:  float64(math.Float32frombits(binary.BigEndian.Uint32(b[8:12]))),
		MZ: float64(math.Float32frombits(binary.BigEndian.Uint32(b[12:16]))),
	}
}

// Decode decodes a complete POS byte stream. The length must be a multiple
// of 16; otherwise a *core.DecodeError is returned and no ions.
func Decode(data []byte) ([]core.Ion, error) {
	if len(data)%core.RecordSize != 0 {
		return nil, &core.DecodeError{
			Size: int64(len(data)),
			Err:  fmt.Errorf("length is not a multiple of %d", core.RecordSize),
		}
	}

	ions := make([]core.Ion, len(data)/core.RecordSize)
	for i := range ions {
		ions[i] = decodeRecord(data[i*core.RecordSize:])
	}
	return ions, nil
}

// ReadFile decodes the POS file at path.
func ReadFile(path string) (*core.Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.NotFound(path)
		}
		return nil, fmt.Errorf("failed to stat input file: %w", err)
	}
	if info.IsDir() {
		return nil, &core.DecodeError{Path: path, Size: -1, Err: errors.New("is a directory")}
	}
	if info.Size()%core.RecordSize != 0 {
		return nil, &core.DecodeError{
			Path: path,
			Size: info.Size(),
			Err:  fmt.Errorf("length is not a multiple of %d", core.RecordSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	ions, err := Decode(data)
	if err != nil {
		var de *core.DecodeError
		if errors.As(err, &de) {
			de.Path = path
		}
		return nil, err
	}

	return &core.Dataset{Ions: ions, Source: path}, nil
}

// Encode writes ions in POS format. Values are narrowed to float32.
func Encode(w io.Writer, ions []core.Ion) error {
	bw := bufio.NewWriter(w)
	var buf [core.RecordSize]byte
	for _, ion := range ions {
		binary.BigEndian.PutUint32(buf[0:4], math.Float32bits(float32(ion.X)))
		binary.BigEndian.PutUint32(buf[4:8], math.Float32bits(float32(ion.Y)))
		binary.BigEndian.PutUint32(buf[8:12], math.Float32bits(float32(ion.Z)))
		binary.BigEndian.PutUint32(buf[12:16], math.Float32bits(float32(ion.MZ)))
		if _, err := bw.Write(buf[:]); err != nil {
			return fmt.Errorf("failed to write ion: %w", err)
		}
	}
	return bw.Flush()
}
