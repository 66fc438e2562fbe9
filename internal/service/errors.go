package service

import "errors"

var (
	// ErrMissingParameter is returned when a required action parameter is absent.
	ErrMissingParameter = errors.New("missing parameter")
	// ErrInvalidTarget is returned when a target URL fails validation.
	ErrInvalidTarget = errors.New("invalid target url")
	// ErrGenerationExhausted is returned when identifier generation ran out of
	// attempts without finding a free identifier. No link is created in that case.
	ErrGenerationExhausted = errors.New("identifier generation attempts exhausted")
	// ErrForbidden is returned when the caller lacks the rights for an operation.
	ErrForbidden = errors.New("permission denied")
)
