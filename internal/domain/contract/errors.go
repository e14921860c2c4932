package contract

import (
	"errors"
	"fmt"
)

// Error kinds returned by the lifecycle service. Match them with errors.Is.
var (
	// ErrValidation indicates malformed or missing payload fields.
	ErrValidation = errors.New("validation error")
	// ErrInvalidTransition indicates the action is not legal from the current status.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrConflict indicates a concurrent modification or a duplicate renewal.
	ErrConflict = errors.New("conflict")
	// ErrNotFound indicates a referenced contract, version, step or renewal is missing.
	ErrNotFound = errors.New("not found")
)

// TransitionError describes a rejected operation. Its Kind is one of the
// error kinds above and Message is meant to be shown to the user verbatim.
type TransitionError struct {
	Kind    error
	Action  ActionName
	From    Status
	Message string
}

func (e *TransitionError) Error() string {
	switch {
	case e.Action != "" && e.From != "":
		return fmt.Sprintf("%s: %s from %s: %s", e.Kind, e.Action, e.From, e.Message)
	case e.Action != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Action, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *TransitionError) Unwrap() error {
	return e.Kind
}

func validationError(action ActionName, format string, args ...any) error {
	return &TransitionError{Kind: ErrValidation, Action: action, Message: fmt.Sprintf(format, args...)}
}

func invalidTransition(action ActionName, from Status, format string, args ...any) error {
	return &TransitionError{Kind: ErrInvalidTransition, Action: action, From: from, Message: fmt.Sprintf(format, args...)}
}

func conflictError(action ActionName, format string, args ...any) error {
	return &TransitionError{Kind: ErrConflict, Action: action, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(action ActionName, format string, args ...any) error {
	return &TransitionError{Kind: ErrNotFound, Action: action, Message: fmt.Sprintf(format, args...)}
}

// Kind returns the error kind carried by err, or nil if err is not a
// lifecycle error.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrInvalidTransition, ErrConflict, ErrNotFound} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// renewalStateError reports a renewal request that changed state under the
// action.
func renewalStateError(action ActionName, err error) error {
	return conflictError(action, "%v", err)
}
