package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pavel-fokin/files-vault/internal/fields"
	"github.com/pavel-fokin/files-vault/internal/files"
	"github.com/pavel-fokin/files-vault/internal/keys"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrRequestTooLarge = errors.New("request entity too large")
)

const (
	codeValidationFailed = "VALIDATION_FAILED"
	codeRequestTooLarge  = "REQUEST_TOO_LARGE"
	codeNotFound         = "NOT_FOUND"
	codeMalformedKey     = "MALFORMED_KEY"
	codeDecryptionFailed = "DECRYPTION_FAILED"
	codeUnknownMimeType  = "UNKNOWN_MIME_TYPE"
)

type errorResponse struct {
	Code  int       `json:"code"`
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message      string `json:"message"`
	Stack        string `json:"stack,omitempty"`
	InternalCode string `json:"internalCode,omitempty"`
}

// classify maps an error to its HTTP status and internal code.
// Unrecognized errors are 500 without an internal code.
func classify(err error) (int, string) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, ErrRequestTooLarge), errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge, codeRequestTooLarge
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, codeValidationFailed
	case errors.Is(err, files.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, keys.ErrMalformedKey):
		return http.StatusBadRequest, codeMalformedKey
	case errors.Is(err, fields.ErrDecryption):
		return http.StatusBadRequest, codeDecryptionFailed
	case errors.Is(err, files.ErrUnknownMimeType):
		return http.StatusUnprocessableEntity, codeUnknownMimeType
	default:
		return http.StatusInternalServerError, ""
	}
}

// errorChain lists every error in the wrap chain, outermost first.
func errorChain(err error) string {
	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, fmt.Sprintf("%T: %s", e, e.Error()))
	}
	return strings.Join(lines, "\n")
}

func writeError(w http.ResponseWriter, r *http.Request, cfg *Config, err error) {
	status, internalCode := classify(err)

	attrs := []any{"error", err, "status", status, "request_id", requestIDFrom(r.Context())}
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", attrs...)
	} else {
		slog.WarnContext(r.Context(), "Request rejected", attrs...)
	}

	body := errorBody{
		Message:      err.Error(),
		InternalCode: internalCode,
	}
	if !cfg.IsProduction() {
		body.Stack = errorChain(err)
	}

	writeJSON(w, status, errorResponse{Code: 0, Error: body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
