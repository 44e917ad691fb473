package trim

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gatewayLog = `ts,gateway,rssi
2024-03-01 10:00:00,gw-a,-80
2024-03-02 10:00:00,gw-b,-81
2024-03-03 09:00:00,gw-a,-79
2024-03-03 11:00:00,gw-b,-90
2024-03-04 10:00:00,gw-a,-70
`

var now = time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)

func TestStartDate(t *testing.T) {
	assert.Equal(t, "2024-03-03", StartDate(now, 2))
	assert.Equal(t, "2024-03-04", StartDate(now, 0.5))
	assert.Equal(t, "2024-03-05", StartDate(now, 0))
}

func TestLines(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		filter  string
		want    string
		wantN   int
		wantErr error
	}{
		{
			name:  "keeps from first matching line",
			start: "2024-03-03",
			want:  "ts,gateway,rssi\n2024-03-03 09:00:00,gw-a,-79\n2024-03-03 11:00:00,gw-b,-90\n2024-03-04 10:00:00,gw-a,-70\n",
			wantN: 3,
		},
		{
			name:   "filter applies after the start line",
			start:  "2024-03-02",
			filter: "gw-a",
			want:   "ts,gateway,rssi\n2024-03-03 09:00:00,gw-a,-79\n2024-03-04 10:00:00,gw-a,-70\n",
			wantN:  2,
		},
		{
			name:    "start missing writes header only",
			start:   "2023-12-31",
			want:    "ts,gateway,rssi\n",
			wantErr: ErrStartNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			n, err := Lines(strings.NewReader(gatewayLog), &out, tt.start, tt.filter)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantN, n)
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestLinesEmptyInput(t *testing.T) {
	var out bytes.Buffer
	_, err := Lines(strings.NewReader(""), &out, "2024-03-03", "")
	require.ErrorIs(t, err, ErrEmptyFile)
}

func TestFileInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.csv")
	require.NoError(t, os.WriteFile(path, []byte(gatewayLog), 0o644))

	n, err := File(path, path, 1, now, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ts,gateway,rssi\n2024-03-04 10:00:00,gw-a,-70\n", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestFileStartNotFoundLeavesOutputUntouched(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.csv")
	out := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(in, []byte(gatewayLog), 0o644))
	require.NoError(t, os.WriteFile(out, []byte("previous\n"), 0o644))

	_, err := File(in, out, 100, now, "")
	require.ErrorIs(t, err, ErrStartNotFound)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "previous\n", string(got))
}

func TestFileInPlaceStartNotFoundKeepsData(t *testing.T) {
	const log = "ts\tgw\n2024-03-01 10:00:00\tgw-a\n2024-03-05 10:00:00\tgw-a\n2024-03-06 10:00:00\tgw-b\n"
	path := filepath.Join(t.TempDir(), "gateways.tsv")
	require.NoError(t, os.WriteFile(path, []byte(log), 0o644))

	// 2024-03-03 is absent from the file.
	_, err := File(path, path, 3, time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC), "")
	require.ErrorIs(t, err, ErrStartNotFound)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, log, string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileKeepsPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.csv")
	require.NoError(t, os.WriteFile(path, []byte(gatewayLog), 0o644))
	require.NoError(t, os.Chmod(path, 0o644))

	_, err := File(path, path, 1, now, "")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestFileErrors(t *testing.T) {
	_, err := File("in", "out", -1, now, "")
	require.ErrorIs(t, err, ErrInvalidDays)

	_, err = File(filepath.Join(t.TempDir(), "missing.csv"), filepath.Join(t.TempDir(), "out.csv"), 1, now, "")
	require.ErrorIs(t, err, ErrTrimFileFailed)
}
