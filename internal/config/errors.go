package config

import "errors"

// ErrInvalidConfig marks values that fail Validate; ErrLoadConfig marks
// file, env or unmarshal failures in Load.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
