package econ

import "errors"

var ErrInvalidInputs = errors.New("invalid rebate model inputs")
