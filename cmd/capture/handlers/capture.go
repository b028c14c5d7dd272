package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hairizuan-noorazman/workflow-capture/job"
	"github.com/hairizuan-noorazman/workflow-capture/logger"
	"github.com/hairizuan-noorazman/workflow-capture/workflow"
)

// Notifier wakes the job workers.
type Notifier interface {
	Notify()
}

// CaptureHandler queues capture jobs and serves their results.
type CaptureHandler struct {
	jobStore job.Store
	writer   *workflow.Writer
	notifier Notifier
	logger   logger.Logger
}

// NewCaptureHandler creates a new capture handler. notifier may be nil.
func NewCaptureHandler(jobStore job.Store, writer *workflow.Writer, notifier Notifier, log logger.Logger) *CaptureHandler {
	return &CaptureHandler{
		jobStore: jobStore,
		writer:   writer,
		notifier: notifier,
		logger:   log,
	}
}

// CreateCaptureRequest represents a capture request.
type CreateCaptureRequest struct {
	App             string `json:"app"`
	TaskName        string `json:"task_name"`
	TaskDescription string `json:"task_description"`
	StartURL        string `json:"start_url"`

	// OptimizedDescription replaces TaskDescription as the agent's
	// instruction when set.
	OptimizedDescription string `json:"optimized_description,omitempty"`
	AuthRequired         bool   `json:"auth_required,omitempty"`
}

// Create queues a capture job.
func (h *CaptureHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCaptureRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	j := &job.Job{
		Type: job.JobTypeWorkflowCapture,
		Config: job.JSONMap{
			job.ConfigApp:             strings.ToLower(strings.TrimSpace(req.App)),
			job.ConfigTaskName:        strings.TrimSpace(req.TaskName),
			job.ConfigTaskDescription: strings.TrimSpace(req.TaskDescription),
			job.ConfigStartURL:        strings.TrimSpace(req.StartURL),
			job.ConfigInstructions:    strings.TrimSpace(req.OptimizedDescription),
			job.ConfigAuthRequired:    req.AuthRequired,
		},
	}

	if err := h.jobStore.Create(r.Context(), j); err != nil {
		if errors.Is(err, job.ErrInvalidConfig) {
			respondError(w, http.StatusBadRequest, "task_description and start_url are required")
			return
		}
		h.logger.Error(r.Context(), "failed to create capture job", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to create capture job")
		return
	}

	// Busy workers pick the job up on their next drain.
	if h.notifier != nil {
		h.notifier.Notify()
	}

	h.logger.Info(r.Context(), "capture job queued", map[string]interface{}{
		"job_id": j.ID.String(),
		"app":    j.App,
	})
	respondJSON(w, http.StatusCreated, j)
}

// List handles listing capture jobs, optionally filtered by status and app.
func (h *CaptureHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	filter := job.ListFilter{
		Status: job.Status(r.URL.Query().Get("status")),
		App:    strings.ToLower(r.URL.Query().Get("app")),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		respondError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	total, err := h.jobStore.Count(r.Context(), filter)
	if err != nil {
		h.logger.Error(r.Context(), "failed to count capture jobs", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to count capture jobs")
		return
	}

	jobs, err := h.jobStore.List(r.Context(), filter, limit, offset)
	if err != nil {
		h.logger.Error(r.Context(), "failed to list capture jobs", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to list capture jobs")
		return
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(jobs, total, limit, offset))
}

// getJob loads the job named by the path. On failure the error response has
// already been written.
func (h *CaptureHandler) getJob(w http.ResponseWriter, r *http.Request) (*job.Job, bool) {
	id, ok := parseUUIDOrRespond(w, r, "id", "capture")
	if !ok {
		return nil, false
	}

	j, err := h.jobStore.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, "capture not found")
			return nil, false
		}
		h.logger.Error(r.Context(), "failed to get capture job", map[string]interface{}{
			"error":  err.Error(),
			"job_id": id.String(),
		})
		respondError(w, http.StatusInternalServerError, "failed to get capture")
		return nil, false
	}
	return j, true
}

// GetByID handles getting a single capture job.
func (h *CaptureHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	j, ok := h.getJob(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, j)
}

// Workflow serves the workflow document of a finished capture.
func (h *CaptureHandler) Workflow(w http.ResponseWriter, r *http.Request) {
	j, ok := h.getJob(w, r)
	if !ok {
		return
	}

	path := j.Result.String(job.ResultWorkflowPath)
	if path == "" {
		if j.Status.IsFinal() {
			respondError(w, http.StatusNotFound, "capture produced no workflow document")
			return
		}
		respondError(w, http.StatusConflict, "capture has not finished")
		return
	}

	c, err := h.writer.Load(r.Context(), path)
	if err != nil {
		h.logger.Error(r.Context(), "failed to load workflow document", map[string]interface{}{
			"error":  err.Error(),
			"job_id": j.ID.String(),
			"path":   path,
		})
		respondError(w, http.StatusInternalServerError, "failed to load workflow document")
		return
	}
	respondJSON(w, http.StatusOK, c)
}
