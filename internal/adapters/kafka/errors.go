package kafka

import "errors"

// Sentinel kinds for consumer errors.
var (
	ErrInvalidConfig    = errors.New("invalid kafka config")
	ErrMalformedMessage = errors.New("malformed incident message")
	ErrFetch            = errors.New("kafka fetch failed")
	ErrCommit           = errors.New("kafka commit failed")
)
