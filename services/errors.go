package services

import "errors"

// Errors surfaced by the messaging core. Controllers translate these into
// the API error envelope; anything else is treated as an internal failure.
var (
	// ErrNotFound means a referenced user, item, reply target, or message
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBlocked means a send was refused because one party blocks the other.
	ErrBlocked = errors.New("blocked")

	// ErrForbidden means the actor lacks rights for the requested operation.
	ErrForbidden = errors.New("forbidden")
)
