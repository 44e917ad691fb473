package trim

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	dateLayout    = "2006-01-02"
	maxLineLength = 1024 * 1024
)

// StartDate returns the YYYY-MM-DD string of the first day to keep.
func StartDate(now time.Time, daysToKeep float64) string {
	keep := time.Duration(daysToKeep * float64(24*time.Hour))
	return now.Add(-keep).Format(dateLayout)
}

// Lines copies the header line of r to w, then every line from the first one
// containing start onward. A non-empty filter keeps only lines after the
// header that contain it. It returns the number of lines written after the
// header. When start never appears only the header is written and
// ErrStartNotFound is returned.
func Lines(r io.Reader, w io.Writer, start, filter string) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineLength)
	bw := bufio.NewWriter(w)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return 0, err
		}
		return 0, ErrEmptyFile
	}
	if _, err := fmt.Fprintln(bw, sc.Text()); err != nil {
		return 0, err
	}

	found := false
	written := 0
	for sc.Scan() {
		line := sc.Text()
		if !found {
			if !strings.Contains(line, start) {
				continue
			}
			found = true
		}
		if filter != "" && !strings.Contains(line, filter) {
			continue
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return written, err
		}
		written++
	}
	if err := sc.Err(); err != nil {
		return written, err
	}
	if err := bw.Flush(); err != nil {
		return written, err
	}
	if !found {
		return 0, ErrStartNotFound
	}
	return written, nil
}

// File trims in to out, keeping the header and the trailing lines starting
// at the day now - daysToKeep. out may name the same file as in; the result
// is written to a temporary file in out's directory and renamed into place
// with the input's permissions. When the start day never appears out is left
// untouched and ErrStartNotFound is returned.
func File(in, out string, daysToKeep float64, now time.Time, filter string) (int, error) {
	if daysToKeep < 0 {
		return 0, ErrInvalidDays
	}

	src, err := os.Open(in)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTrimFileFailed, err)
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTrimFileFailed, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), ".trim-*")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTrimFileFailed, err)
	}
	defer os.Remove(tmp.Name())

	n, linesErr := Lines(src, tmp, StartDate(now, daysToKeep), filter)
	if closeErr := tmp.Close(); closeErr != nil && linesErr == nil {
		linesErr = closeErr
	}
	if errors.Is(linesErr, ErrStartNotFound) {
		return 0, linesErr
	}
	if linesErr != nil {
		return 0, fmt.Errorf("%w: %w", ErrTrimFileFailed, linesErr)
	}
	if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTrimFileFailed, err)
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTrimFileFailed, err)
	}
	return n, nil
}
