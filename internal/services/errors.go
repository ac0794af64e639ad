package services

import "errors"

var (
	// ErrSelfWatch is returned when a user tries to watch or unwatch themself.
	ErrSelfWatch = errors.New("users cannot watch themselves")
	// ErrInvalidArgument is returned for malformed input such as an empty
	// message or a non-positive post count.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrSessionNotFound is returned for unknown or closed session ids.
	ErrSessionNotFound = errors.New("session not found")
)
