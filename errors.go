package blobgate

import "errors"

var (
	// ErrBadRequest is returned when input cannot be decoded or validated
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound is returned when no record exists for the given id
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an id is already present, at either the
	// pre-check or the storage-constraint level
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized is returned when authentication fails
	ErrUnauthorized = errors.New("unauthorized")
)
