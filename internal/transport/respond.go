package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rpggio/clmcore/internal/domain/activity"
	"github.com/rpggio/clmcore/internal/domain/contract"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	RequestID string      `json:"request_id"`
	Error     errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{
		RequestID: "req_" + uuid.NewString(),
		Error:     errorDetail{Code: code, Message: message},
	})
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// errorStatus maps lifecycle error kinds onto HTTP status and code. Anything
// else is an internal error whose message is not exposed.
func errorStatus(err error) (int, string, string) {
	var te *contract.TransitionError
	message := err.Error()
	if errors.As(err, &te) {
		message = te.Message
	}
	if errors.Is(err, activity.ErrInvalidInput) {
		return http.StatusBadRequest, "VALIDATION_ERROR", message
	}
	switch contract.Kind(err) {
	case contract.ErrValidation:
		return http.StatusBadRequest, "VALIDATION_ERROR", message
	case contract.ErrNotFound:
		return http.StatusNotFound, "NOT_FOUND", message
	case contract.ErrConflict:
		return http.StatusConflict, "CONFLICT", message
	case contract.ErrInvalidTransition:
		return http.StatusUnprocessableEntity, "INVALID_TRANSITION", message
	default:
		return http.StatusInternalServerError, "INTERNAL", "internal error"
	}
}
