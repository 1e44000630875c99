package service

import "errors"

// Sentinel kinds returned by the service. Callers map them with errors.Is.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrInvalidRequest = errors.New("invalid request")
	ErrQueueFull      = errors.New("incident queue full")
	ErrDuplicate      = errors.New("duplicate incident")
	ErrNotFound       = errors.New("not found")
)
