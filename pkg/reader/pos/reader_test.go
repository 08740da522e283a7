package pos

import (
	"bytes"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/ChrisMcGann/aptkit/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fourIons is a hand-encoded 64-byte POS stream.
//
//	1.0 = 3f800000   2.0 = 40000000   -0.5 = bf000000  27.0 = 41d80000
//	10.25 = 41240000 0.0 = 00000000   3.5 = 40600000   56.0 = 42600000
//	-2.0 = c0000000  8.0 = 41000000   100.0 = 42c80000 1.5 = 3fc00000
const fourIons = "" +
	"3f800000" + "40000000" + "bf000000" + "41d80000" +
	"41240000" + "00000000" + "40600000" + "42600000" +
	"c0000000" + "41000000" + "42c80000" + "3fc00000" +
	"00000000" + "00000000" + "00000000" + "00000000"

var fourIonsWant = []core.Ion{
	{X: 1, Y: 2, Z: -0.5, MZ: 27},
	{X: 10.25, Y: 0, Z: 3.5, MZ: 56},
	{X: -2, Y: 8, Z: 100, MZ: 1.5},
	{X: 0, Y: 0, Z: 0, MZ: 0},
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestDecodeKnownRecords(t *testing.T) {
	data := mustHex(t, fourIons)
	require.Len(t, data, 64)

	ions, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, fourIonsWant, ions)

	again, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, ions, again)
}

func TestDecodeLengths(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantN   int
		wantErr bool
	}{
		{"empty", 0, 0, false},
		{"one record", 16, 1, false},
		{"many records", 16 * 7, 7, false},
		{"short record", 15, 0, true},
		{"trailing bytes", 16*3 + 4, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ions, err := Decode(make([]byte, tt.size))
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrDecode)
				assert.Nil(t, ions)
				return
			}
			require.NoError(t, err)
			assert.Len(t, ions, tt.wantN)
		})
	}
}

func TestReaderStreaming(t *testing.T) {
	r := NewReader(iotest.HalfReader(bytes.NewReader(mustHex(t, fourIons))))

	var got []core.Ion
	for r.Next() {
		got = append(got, r.Ion())
	}
	require.NoError(t, r.Err())
	assert.Equal(t, fourIonsWant, got)
	assert.Equal(t, 4, r.Count())
}

func TestReaderTrailingBytes(t *testing.T) {
	data := append(mustHex(t, fourIons), 0x01, 0x02, 0x03)
	r := NewReader(bytes.NewReader(data))

	n := 0
	for r.Next() {
		n++
	}
	assert.Equal(t, 4, n)

	var de *core.DecodeError
	require.True(t, errors.As(r.Err(), &de))
	assert.Equal(t, int64(67), de.Size)
}

func TestReaderIOError(t *testing.T) {
	r := NewReader(iotest.ErrReader(errors.New("disk on fire")))
	assert.False(t, r.Next())
	assert.ErrorIs(t, r.Err(), core.ErrDecode)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.pos")
	require.NoError(t, os.WriteFile(good, mustHex(t, fourIons), 0o644))
	ds, err := ReadFile(good)
	require.NoError(t, err)
	assert.Equal(t, fourIonsWant, ds.Ions)
	assert.Equal(t, good, ds.Source)
	assert.False(t, ds.Cached)

	bad := filepath.Join(dir, "bad.pos")
	require.NoError(t, os.WriteFile(bad, make([]byte, 20), 0o644))
	_, err = ReadFile(bad)
	var de *core.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, bad, de.Path)
	assert.Equal(t, int64(20), de.Size)

	_, err = ReadFile(filepath.Join(dir, "missing.pos"))
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = ReadFile(dir)
	assert.ErrorIs(t, err, core.ErrDecode)
}

func TestEncodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, fourIonsWant))
	assert.Equal(t, mustHex(t, fourIons), buf.Bytes())
}
