package trim

import "errors"

var (
	ErrStartNotFound  = errors.New("start date not found in file")
	ErrEmptyFile      = errors.New("file has no header line")
	ErrInvalidDays    = errors.New("days to keep must be non-negative")
	ErrTrimFileFailed = errors.New("failed to trim file")
)
