package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "custodia/pkg/domainerrors"
)

// writeJSON encodes v with the given status. Encoding failures after the
// header is written can only be logged by the caller's middleware.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError is the single place domain error codes become HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := "internal error"
	var dErr *dErrors.Error
	if errors.As(err, &dErr) && code != dErrors.CodeInternal {
		// Internal messages may carry storage detail; everything else is
		// written for the caller.
		message = dErr.Message
	}
	writeErrorBody(w, statusFor(code), string(code), message)
}

func writeErrorBody(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
