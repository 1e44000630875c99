package geo

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidBounds     = errors.New("invalid bounds")
	ErrMalformedBoundary = errors.New("malformed boundary")
)
