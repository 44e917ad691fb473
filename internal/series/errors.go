package series

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input series")
	ErrEmptySeries  = errors.New("series is empty")
	ErrUnordered    = errors.New("series is not time-ordered")
)
