package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	ErrInvalidIncident = errors.New("invalid incident")
)
