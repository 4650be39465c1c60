package topreduce

import "errors"

// Sentinel errors for common error conditions
var (
	// Run-aborting errors
	ErrInvalidInputPath   = errors.New("input path is not a directory")
	ErrInvalidWorkerCount = errors.New("worker count must be positive")
	ErrInvalidBatchSize   = errors.New("batch size must be positive")

	// Per-item errors, absorbed by the scanner
	ErrMissingColumn = errors.New("missing schema column")
	ErrMalformedRow  = errors.New("malformed row")
	ErrInvalidWeight = errors.New("invalid weight")

	// Programming errors
	ErrInvariantViolation = errors.New("accumulator invariant violated")
)
