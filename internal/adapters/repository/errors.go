package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidStation  = errors.New("invalid station")
	ErrInvalidIncident = errors.New("invalid incident")
	ErrInvalidBoundary = errors.New("invalid boundary")
)
