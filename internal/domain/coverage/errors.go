package coverage

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidConfig = errors.New("invalid config")
)
