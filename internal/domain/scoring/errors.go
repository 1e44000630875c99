package scoring

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidTarget = errors.New("invalid optimization target")
	ErrInvalidInput  = errors.New("invalid scoring input")
)
