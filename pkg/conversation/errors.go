package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionClosed is returned by Submit after Shutdown was accepted and
	// by NextEvent once the final event has been consumed.
	ErrSessionClosed = errors.New("session closed")

	// ErrConversationNotFound is returned for ids the manager does not hold.
	ErrConversationNotFound = errors.New("conversation not found")
)

// SessionCreationError reports why a session could not be started.
type SessionCreationError struct {
	ProviderID string
	Err        error
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("failed to create session for provider %q: %v", e.ProviderID, e.Err)
}

func (e *SessionCreationError) Unwrap() error {
	return e.Err
}
