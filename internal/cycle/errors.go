package cycle

import "errors"

var (
	ErrInvalidCycles      = errors.New("cycles must be ascending and non-overlapping")
	ErrInvalidCOPConstant = errors.New("cop constant must be positive")
	ErrInvalidExtension   = errors.New("extension must not be negative")
)
