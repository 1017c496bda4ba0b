// Package handlers implements the HTTP API over the job queue.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"motiond/internal/artifact"
	"motiond/internal/device"
	"motiond/internal/domain"
	"motiond/internal/infra"
	"motiond/internal/metrics"
	"motiond/internal/queue"
)

// App bundles the handler dependencies.
type App struct {
	Queue          *queue.Queue
	Artifacts      *artifact.Store
	Metrics        *metrics.Store
	Probe          *device.Probe
	Logger         infra.Logger
	MaxUploadBytes int64
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error string `json:"error"`
}

// fail maps domain sentinels onto HTTP statuses and writes the error body.
func (a *App) fail(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidPreset):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrQueueClosed):
		code = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrDeviceUnavailable):
		code = http.StatusServiceUnavailable
	}
	if code == http.StatusInternalServerError {
		a.Logger.Error().Err(err).Msg("http: internal error")
	}
	a.json(w, code, apiError{Error: err.Error()})
}
