package game

import (
	"fmt"

	"github.com/pkg/errors"
)

// Rejection kinds. A rejected turn never changes the session.
var (
	ErrInvalidSkill         = errors.New("invalid skill")
	ErrInvalidTarget        = errors.New("invalid target")
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrSessionTerminal      = errors.New("session is not in progress")
	ErrInvalidAction        = errors.New("invalid action")
	ErrInternal             = errors.New("internal error")
)

// ErrEmptyParty is returned when an encounter is begun without a party
var ErrEmptyParty = errors.New("party roster is empty")

// RejectionError is a recoverable turn rejection with a player-facing message
type RejectionError struct {
	Kind    error
	Message string
}

func (e *RejectionError) Error() string {
	return e.Message
}

func (e *RejectionError) Unwrap() error {
	return e.Kind
}

func reject(kind error, format string, args ...interface{}) error {
	return &RejectionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is a turn rejection and returns it
func IsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
