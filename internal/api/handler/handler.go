// Package handler implements the HTTP API over the orchestration core.
package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"go-insights-pipeline/internal/backend"
	"go-insights-pipeline/internal/export"
	"go-insights-pipeline/internal/pipeline"
	"go-insights-pipeline/internal/store"
)

// maxBody bounds request bodies
const maxBody = 4 << 20

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Code  int    `json:"code,omitempty"`
}

// Handler serves the API
type Handler struct {
	engine *pipeline.Engine
	jobs   *export.Service
	store  *store.Store
	log    *zap.Logger
}

// New creates the API handler
func New(engine *pipeline.Engine, jobs *export.Service, st *store.Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{engine: engine, jobs: jobs, store: st, log: log.Named("api")}
}

func readJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if len(body) == 0 {
		return errors.New("empty request body")
	}
	if err := sonic.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON payload: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// fail maps an error from the core to a status code
func (h *Handler) fail(w http.ResponseWriter, err error) {
	var verr *pipeline.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Reason, Field: verr.Field})
	case errors.Is(err, store.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, pipeline.ErrPageFailed), errors.Is(err, export.ErrExportAborted):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: backend.StatusCode(err)})
	default:
		h.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
