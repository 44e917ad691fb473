package message

import "errors"

var (
	ErrJSONUnmarshalFailed = errors.New("failed to unmarshal reading message")
	ErrMissingSensorID     = errors.New("reading message has no sensor id")
	ErrBadTimestamp        = errors.New("reading message has no parsable timestamp")
	ErrBadValue            = errors.New("reading message has no numeric value")
)
