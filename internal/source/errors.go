package source

import "errors"

var (
	ErrFetchFailed      = errors.New("failed to fetch series from telemetry source")
	ErrUnknownQuantity  = errors.New("no sensor configured for quantity")
	ErrBadResponse      = errors.New("telemetry source returned a malformed response")
	ErrUnexpectedStatus = errors.New("telemetry source returned an unexpected status")
)
