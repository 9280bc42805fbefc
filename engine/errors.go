package engine

import "errors"

var (
	ErrNotStarted   = errors.New("engine not started")
	ErrInvalidInput = errors.New("invalid input")
	ErrSaveFailed   = errors.New("failed to save config")
)
