package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"saldo/internal/api"
	"saldo/internal/core"
	"saldo/internal/log"
)

const (
	msgUnauthorized     = "Unauthorized"
	msgInternal         = "Internal server error"
	msgMethodNotAllowed = "Method not allowed"
	msgRateLimited      = "Rate limit exceeded. Please try again later."
	msgNotFound         = "Not found"
)

// writeJSON encodes v with the given status. Encoding failures can only be
// logged since the header is already out.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to write response", log.FieldError, err.Error())
	}
}

func writeErrorMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, api.ErrorResponse{Error: msg})
}

// writeError maps service errors onto the public taxonomy. Only invalid
// input messages reach the client; everything unexpected is a 500 with a
// fixed body and the cause goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		writeErrorMessage(w, r, http.StatusUnauthorized, msgUnauthorized)
	case errors.Is(err, core.ErrInvalidInput):
		writeErrorMessage(w, r, http.StatusBadRequest, inputMessage(err))
	default:
		errType := log.ErrorTypeInternal
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			errType = log.ErrorTypeTimeout
		}
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, log.NewFields().WithErrorType(errType))
		writeErrorMessage(w, r, http.StatusInternalServerError, msgInternal)
	}
}

// inputMessage capitalizes the rejection reason for the response body.
func inputMessage(err error) string {
	msg := core.InputReason(err)
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// allow rejects requests whose method is not in methods with a 405 that
// lists the accepted ones.
func allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeErrorMessage(w, r, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	return false
}
