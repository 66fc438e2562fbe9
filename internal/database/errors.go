package database

import "errors"

var (
	// ErrIdentifierExists is returned when an attempt is made to create
	// a new link with an identifier that is already assigned.
	ErrIdentifierExists = errors.New("identifier exists")
	// ErrLinkNotFound is returned when an attempt is made to retrieve
	// a link by an id or identifier that doesn't exist.
	ErrLinkNotFound = errors.New("link not found")
)
