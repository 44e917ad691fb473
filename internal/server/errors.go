package server

import "errors"

var (
	ErrUnknownField = errors.New("unknown record field")
	ErrMissingField = errors.New("missing field parameter")
	ErrServerFailed = errors.New("http server failed")
)
