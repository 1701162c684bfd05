// Package httpserver carries the scheduler's REST surface: job submission,
// data retrieval and the health endpoint, with HTTP concerns kept apart
// from the application services behind them.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/domain"
)

type errorEnvelope struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	// A target that cannot be HEAD-probed is the caller's problem, not a
	// gateway fault.
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrUpstreamHTTP):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		code = http.StatusConflict
	}
	msg := err.Error()
	var me *domain.MessageError
	if errors.As(err, &me) {
		msg = me.Message
	}
	writeJSON(w, code, errorEnvelope{Error: msg})
}
