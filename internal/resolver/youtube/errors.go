package youtube

import "errors"

var (
	// ErrNotFound is a confirmed verdict that the content does not exist or cannot be resolved.
	ErrNotFound = errors.New("content not found")
	// ErrUnavailable means the upstream could not give a verdict.
	ErrUnavailable = errors.New("resolver unavailable")
)
