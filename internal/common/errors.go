package common

import "errors"

var (
	// repository specific errors
	ErrNotFound = errors.New("not found")

	// service specific errors
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrInvalidToken = errors.New("invalid token")
)
