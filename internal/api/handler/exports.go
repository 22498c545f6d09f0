package handler

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"go-insights-pipeline/internal/export"
	"go-insights-pipeline/internal/model"
	"go-insights-pipeline/internal/store"
	"go-insights-pipeline/pkg/router"
)

// SubmitResponse acknowledges an accepted export job
type SubmitResponse struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// FileInfo describes one produced file
type FileInfo struct {
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
}

// SubmitExport starts an export job
// @Summary Start an export
// @Description Validate and persist an export job, then produce its file in the background.
// @Tags exports
// @Accept json
// @Produce json
// @Param job body model.ExportJobSpec true "Export job"
// @Success 202 {object} SubmitResponse "Job accepted"
// @Failure 400 {object} ErrorResponse "Invalid job"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /exports [post]
func (h *Handler) SubmitExport(w http.ResponseWriter, r *http.Request) {
	var spec model.ExportJobSpec
	if err := readJSON(r, &spec); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobID, err := h.jobs.Submit(r.Context(), spec)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.log.Info("export submitted", zap.String("job_id", jobID), zap.String("kind", spec.Kind))
	writeJSON(w, http.StatusAccepted, SubmitResponse{
		JobID:     jobID,
		Status:    store.StatusPending,
		CreatedAt: time.Now().UTC(),
	})
}

// ListExports lists export jobs
// @Summary List exports
// @Description Get every export job, newest first
// @Tags exports
// @Produce json
// @Success 200 {array} store.Job "Export jobs"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /exports [get]
func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.ListJobs()
	if err != nil {
		h.fail(w, err)
		return
	}
	if jobs == nil {
		jobs = []store.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// GetExport returns one export job
// @Summary Get export
// @Description Retrieve an export job with its result
// @Tags exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} store.Job "Export job"
// @Failure 404 {object} ErrorResponse "Job not found"
// @Router /exports/{id} [get]
func (h *Handler) GetExport(w http.ResponseWriter, r *http.Request) {
	job, err := h.store.GetJob(router.Param(r, 0))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GetExportErrors returns the errors recorded for a job
// @Summary Get export errors
// @Description Retrieve every error recorded while the job ran
// @Tags exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {array} model.ErrorDetail "Job errors"
// @Failure 404 {object} ErrorResponse "Job not found"
// @Router /exports/{id}/errors [get]
func (h *Handler) GetExportErrors(w http.ResponseWriter, r *http.Request) {
	jobID := router.Param(r, 0)
	if _, err := h.store.GetJob(jobID); err != nil {
		h.fail(w, err)
		return
	}
	errs, err := h.store.GetJobErrors(jobID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if errs == nil {
		errs = []model.ErrorDetail{}
	}
	writeJSON(w, http.StatusOK, errs)
}

// GetExportLogs returns the stage logs of a job
// @Summary Get export logs
// @Description Retrieve the stage logs of an export job in order
// @Tags exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {array} model.LogEntry "Job logs"
// @Failure 404 {object} ErrorResponse "Job not found"
// @Router /exports/{id}/logs [get]
func (h *Handler) GetExportLogs(w http.ResponseWriter, r *http.Request) {
	jobID := router.Param(r, 0)
	if _, err := h.store.GetJob(jobID); err != nil {
		h.fail(w, err)
		return
	}
	logs, err := h.store.GetPipelineLogs(jobID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if logs == nil {
		logs = []model.LogEntry{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// GetExportFiles lists the files a job produced
// @Summary List export files
// @Description List the files of an export job with their download URLs
// @Tags exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {array} FileInfo "Job files"
// @Failure 404 {object} ErrorResponse "Job not found"
// @Router /exports/{id}/files [get]
func (h *Handler) GetExportFiles(w http.ResponseWriter, r *http.Request) {
	jobID := router.Param(r, 0)
	if _, err := h.store.GetJob(jobID); err != nil {
		h.fail(w, err)
		return
	}
	out := h.jobs.Output()
	names, err := out.ListFiles(jobID)
	if err != nil {
		h.fail(w, err)
		return
	}
	files := make([]FileInfo, 0, len(names))
	for _, name := range names {
		files = append(files, FileInfo{Name: name, DownloadURL: out.GetDownloadURL(jobID, name)})
	}
	writeJSON(w, http.StatusOK, files)
}

// DownloadExportFile streams a produced file
// @Summary Download an export file
// @Description Download one file produced by an export job
// @Tags exports
// @Produce octet-stream
// @Param id path string true "Job ID"
// @Param filename path string true "File name"
// @Success 200 {file} file "File content"
// @Failure 404 {object} ErrorResponse "File not found"
// @Router /exports/{id}/files/{filename} [get]
func (h *Handler) DownloadExportFile(w http.ResponseWriter, r *http.Request) {
	jobID, name := router.Param(r, 0), router.Param(r, 1)
	out := h.jobs.Output()
	path, err := out.Lookup(jobID, name)
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	content, err := os.ReadFile(path)
	if err != nil {
		h.fail(w, fmt.Errorf("failed to read %s: %w", name, err))
		return
	}
	serveFile(w, name, out.GetContentType(name), content)
}

// SampleUsers serves the user import template
// @Summary Sample users CSV
// @Description Download the template for bulk user imports
// @Tags users
// @Produce text/csv
// @Success 200 {file} file "Template"
// @Router /users/sample.csv [get]
func (h *Handler) SampleUsers(w http.ResponseWriter, r *http.Request) {
	f := export.SampleUsersCSV()
	serveFile(w, f.Name, "text/csv", f.Content)
}

func serveFile(w http.ResponseWriter, name, contentType string, content []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}
