package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/atinyakov/CipherStudio/internal/common"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies. Projects are a handful of source files.
const maxBodyBytes = 5 << 20

const (
	msgInvalidRequest = "invalid request"
	msgInternal       = "Internal server error"
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// messageResponse carries a plain confirmation.
type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a service error to a status code and writes {"error": msg}.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError && log != nil {
		log.Error("request failed", zap.Error(err))
	}

	msg := msgInternal
	var ce *common.Error
	switch {
	case errors.As(err, &ce):
		msg = ce.Message
	case status != http.StatusInternalServerError:
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrAlreadyExists):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
