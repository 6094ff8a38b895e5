package scheduler

import "errors"

var (
	// ErrPoolNotRunning is returned when trying to enqueue work on a stopped pool
	ErrPoolNotRunning = errors.New("dispatch worker pool is not running")

	// ErrQueueFull is returned when the work queue is full
	ErrQueueFull = errors.New("dispatch work queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid worker pool configuration")
)
