package model

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrUsage        = errors.New("usage error")
	ErrConfig       = errors.New("configuration error")
	ErrCollaborator = errors.New("automation engine failure")
	ErrAborted      = errors.New("installation aborted")
)

// CollaboratorError is returned when fact gathering or the main playbook
// finishes with a non-zero status.
type CollaboratorError struct {
	Operation string
	Status    int
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %s exited with status %d", ErrCollaborator, e.Operation, e.Status)
}

func (e *CollaboratorError) Unwrap() error {
	return ErrCollaborator
}
