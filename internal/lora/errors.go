package lora

import "errors"

var (
	ErrMissingColumn = errors.New("gateway log is missing a required column")
	ErrReadLogFailed = errors.New("failed to read gateway log")
)
