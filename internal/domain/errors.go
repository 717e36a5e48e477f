package domain

import (
	"errors"
	"strings"
)

var (
	// ErrTestNotFound is returned when a test definition does not resolve or was deleted.
	ErrTestNotFound = errors.New("test not found")
	// ErrSessionNotFound is returned when a session id does not resolve.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTaskNotFound is returned when a session has no open task or a task id does not resolve.
	ErrTaskNotFound = errors.New("task not found")
	// ErrNameNotFound is returned when a display name id does not resolve.
	ErrNameNotFound = errors.New("name not found")
	// ErrExtensionNotFound indicates that no generator is registered under the requested name.
	ErrExtensionNotFound = errors.New("extension not found")
	// ErrInvalidConfig indicates that an extension rejected a test configuration.
	ErrInvalidConfig = errors.New("invalid extension config")

	// ErrNotOwner is returned when the acting identity does not own the session.
	ErrNotOwner = errors.New("session is not owned by caller")
	// ErrSessionComplete is returned for play actions on a completed session.
	ErrSessionComplete = errors.New("session already complete")
	// ErrSessionIncomplete is returned when a result is requested for a running session.
	ErrSessionIncomplete = errors.New("session not complete")

	// ErrOpenTaskExists is returned when a session already has an unanswered task.
	ErrOpenTaskExists = errors.New("open task already exists")
	// ErrTaskAnswered is returned when an answer targets a task that is no longer open.
	ErrTaskAnswered = errors.New("task already answered")
	// ErrConflict is returned when a session changed between read and write.
	ErrConflict = errors.New("session modified concurrently")
)

// ValidationError carries the problems found in caller input: an answer the
// extension could not parse or a test definition that cannot be played.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Problems, "; ")
}
