package registry

import "errors"

var (
	// ErrShortCodeExists is returned when attempting to create a URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrInvalidShortCode is returned when a custom short code fails format validation.
	ErrInvalidShortCode = errors.New("invalid short code format")
	// ErrURLNotFound is returned when a URL with the specified short code cannot be found.
	ErrURLNotFound = errors.New("url not found")
)
