package world

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: the addressed world, model or plugin does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName: a live model already uses the name.
	ErrDuplicateName = errors.New("duplicate model name")
	// ErrWorldClosed: the world has shut down.
	ErrWorldClosed = errors.New("world closed")
	// ErrQueueFull is backpressure from the pending mutation queue. It matches
	// ErrWorldClosed under errors.Is so callers treat both as "not accepted".
	ErrQueueFull = fmt.Errorf("pending mutation queue full: %w", ErrWorldClosed)
)
