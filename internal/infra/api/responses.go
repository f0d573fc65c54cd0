package api

import (
	"encoding/json"
	"errors"
	"net/http"

	derror "ai-image-billing/internal/error"
	"ai-image-billing/internal/infra/logging"

	"github.com/rs/zerolog"
)

var errPanic = errors.New("handler panicked")

// ErrorBody is the envelope of every failed JSON response.
type ErrorBody struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Code    derror.Code `json:"code"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError classifies err, logs it and writes the public envelope. Causes
// never reach the client.
func WriteError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	typed := derror.Classify(err)
	if typed == nil {
		typed = derror.Classify(errors.New("unknown error"))
	}
	status := typed.HTTPStatus()

	if logger != nil {
		l := logging.With(r.Context(), logger)
		ev := l.Warn()
		if status >= http.StatusInternalServerError {
			ev = l.Error()
		}
		ev.Err(err).
			Str("code", string(typed.Code())).
			Int("status", status).
			Str("path", r.URL.Path).
			Msg("request failed")
	}

	WriteJSON(w, status, ErrorBody{
		Success: false,
		Error:   typed.PublicMessage(),
		Code:    typed.Code(),
	})
}
