package audiomgr

import "errors"

var (
	// ErrInvalidArgument is returned for missing or empty inputs and for
	// configurations a collaborator rejects
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState is returned when an operation needs an initialized manager
	ErrInvalidState = errors.New("audio manager not initialized")

	// ErrResourceExhausted is returned when a collaborator cannot be created
	ErrResourceExhausted = errors.New("audio resource unavailable")
)
