package trkmod

import "errors"

// Sentinel errors returned by the format decoders. Callers classify a load
// failure with errors.Is against these rather than matching strings.
var (
	ErrInvalidSignature  = errors.New("trkmod: invalid signature")
	ErrUnsupportedVariant = errors.New("trkmod: unsupported variant")
	ErrTruncated         = errors.New("trkmod: truncated data")
	ErrOutOfRange        = errors.New("trkmod: value out of range")
)
