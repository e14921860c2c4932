package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/clmcore/internal/domain/activity"
	"github.com/rpggio/clmcore/internal/domain/contract"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps lifecycle errors to MCP error codes. The message is passed
// through unchanged. It returns nil for errors that carry no kind.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	message := err.Error()
	var te *contract.TransitionError
	if errors.As(err, &te) {
		message = te.Message
		if te.From != "" {
			return mapKind(err, message, map[string]any{"action": te.Action, "from": te.From})
		}
		if te.Action != "" {
			return mapKind(err, message, map[string]any{"action": te.Action})
		}
	}
	if errors.Is(err, activity.ErrInvalidInput) {
		return &APIError{Code: "VALIDATION_ERROR", Message: message}
	}
	return mapKind(err, message, nil)
}

func mapKind(err error, message string, details any) *APIError {
	switch contract.Kind(err) {
	case contract.ErrValidation:
		return &APIError{Code: "VALIDATION_ERROR", Message: message, Details: details, RecoveryHint: "Fix the arguments and retry"}
	case contract.ErrNotFound:
		return &APIError{Code: "NOT_FOUND", Message: message, Details: details, RecoveryHint: "Check the ID with get_contract"}
	case contract.ErrConflict:
		return &APIError{Code: "CONFLICT", Message: message, Details: details, RecoveryHint: "Reload the contract and retry"}
	case contract.ErrInvalidTransition:
		return &APIError{Code: "INVALID_TRANSITION", Message: message, Details: details, RecoveryHint: "Check the contract status first"}
	default:
		return nil
	}
}
