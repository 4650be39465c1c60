package store

import "errors"

var (
	ErrRunNotFound         = errors.New("run not found")
	ErrInvalidRunID        = errors.New("invalid run ID")
	ErrIncompatibleVersion = errors.New("incompatible run format version")
)
