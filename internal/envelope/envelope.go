// Package envelope writes every JSON response as
// {"success": bool, "errors": {field: message}, "data": ...}.
package envelope

import (
	"encoding/json"
	"net/http"

	"github.com/PaulBabatuyi/pairchat/internal/apperror"
)

// Envelope is a response body. Success is not a field: it is derived
// from Errors when the value is marshaled.
type Envelope struct {
	Errors map[string]string
	Data   any
}

// Success reports whether the envelope carries no errors.
func (e Envelope) Success() bool {
	return len(e.Errors) == 0
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	errs := e.Errors
	if errs == nil {
		errs = map[string]string{}
	}
	data := e.Data
	if data == nil {
		data = struct{}{}
	}
	return json.Marshal(struct {
		Success bool              `json:"success"`
		Errors  map[string]string `json:"errors"`
		Data    any               `json:"data"`
	}{e.Success(), errs, data})
}

// OK wraps data in a successful envelope.
func OK(data any) Envelope {
	return Envelope{Data: data}
}

// Failed builds an envelope reporting err under its field key. Errors
// that are not *apperror.AppError are reported as internal failures.
func Failed(err error) (int, Envelope) {
	appErr, ok := apperror.As(err)
	if !ok {
		appErr = apperror.Transaction(err)
	}
	return Status(appErr.Code), Envelope{Errors: map[string]string{appErr.Key(): appErr.Message}}
}

// Status maps an error code to its HTTP status.
func Status(code apperror.Code) int {
	switch code {
	case apperror.CodeInvalidArgument:
		return http.StatusUnprocessableEntity
	case apperror.CodeNotFound, apperror.CodeAlreadyExists, apperror.CodeFailedPrecondition:
		return http.StatusConflict
	case apperror.CodePermissionDenied:
		return http.StatusForbidden
	case apperror.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperror.CodeResourceExhausted:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// JSON writes env with status.
func JSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// Error writes the envelope and status for err.
func Error(w http.ResponseWriter, err error) {
	status, env := Failed(err)
	JSON(w, status, env)
}
