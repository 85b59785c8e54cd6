package omero

import "errors"

var (
	// ErrNotFound is returned when a requested remote object does not exist or
	// is not visible to the session.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned for malformed script parameters.
	ErrInvalidArgument = errors.New("invalid argument")
)
