package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/kozaktomas/photo-match/internal/constants"
	"github.com/kozaktomas/photo-match/internal/ranker"
	"github.com/kozaktomas/photo-match/internal/search"
)

// ScanHandler handles similarity scan endpoints
type ScanHandler struct {
	searcher   *search.Searcher
	fs         afero.Fs
	jobManager *JobManager
	log        logrus.FieldLogger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(searcher *search.Searcher, fsys afero.Fs, jm *JobManager, log logrus.FieldLogger) *ScanHandler {
	return &ScanHandler{
		searcher:   searcher,
		fs:         fsys,
		jobManager: jm,
		log:        log,
	}
}

// StartScanRequest represents a scan start request
type StartScanRequest struct {
	Reference string `json:"reference"`
	Folder    string `json:"folder"`
	TopK      int    `json:"top_k"`
}

// Start validates the inputs and starts a new scan job
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	var body StartScanRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	req := search.Request{Reference: body.Reference, Folder: body.Folder, TopK: body.TopK}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.TopK < 0 || req.TopK > constants.MaxTopK {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("top_k must be between 0 and %d (0 uses the default)", constants.MaxTopK))
		return
	}

	if info, err := h.fs.Stat(req.Reference); err != nil || info.IsDir() {
		respondError(w, http.StatusBadRequest, "reference image not found")
		return
	}
	if info, err := h.fs.Stat(req.Folder); err != nil || !info.IsDir() {
		respondError(w, http.StatusBadRequest, "folder not found")
		return
	}

	jobID := uuid.New().String()
	job := h.jobManager.CreateJob(jobID, req.Reference, req.Folder, req.TopK)

	// The request context ends when the handler returns
	ctx, cancel := context.WithCancel(context.Background())
	job.setCancel(cancel)

	go h.runScanJob(ctx, cancel, job, req)

	h.log.WithFields(logrus.Fields{
		"job_id":    jobID,
		"reference": sanitizeForLog(req.Reference),
		"folder":    sanitizeForLog(req.Folder),
	}).Info("Scan job started")

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(JobStatusPending),
	})
}

// List returns all known scan jobs
func (h *ScanHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobManager.ListJobs()
	views := make([]ScanJobView, 0, len(jobs))
	for _, job := range jobs {
		view := job.View()
		// results are only returned by Status
		view.Result = nil
		views = append(views, view)
	}
	respondJSON(w, http.StatusOK, views)
}

// Status returns the status and results of a scan job
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	respondJSON(w, http.StatusOK, job.View())
}

// Events streams job events via SSE
func (h *ScanHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job.(*ScanJob).View()
		},
	)
}

// Cancel cancels a scan job
func (h *ScanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}

	if !job.Cancel() {
		respondError(w, http.StatusConflict, fmt.Sprintf("job already %s", job.GetStatus()))
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (h *ScanHandler) lookup(w http.ResponseWriter, r *http.Request) *ScanJob {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return nil
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return nil
	}
	return job
}

// runScanJob runs the scan in the background. However it exits, the job leaves
// the running state.
func (h *ScanHandler) runScanJob(ctx context.Context, cancel context.CancelFunc, job *ScanJob, req search.Request) {
	log := h.log.WithField("job_id", job.ID)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("panic", rec).Error("Scan job panicked")
			h.failJob(job, fmt.Sprintf("internal error: %v", rec))
			return
		}
		if !isJobTerminal(job.GetStatus()) {
			h.failJob(job, "scan ended without a result")
		}
	}()

	if !job.setRunning() {
		// cancelled before it started
		return
	}
	job.SendEvent(JobEvent{Type: "started", Message: "Scan started"})

	candidates, err := h.searcher.Candidates(req)
	if err != nil {
		h.failJob(job, fmt.Sprintf("listing candidates failed: %v", err))
		return
	}
	job.mu.Lock()
	job.Total = len(candidates)
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "candidates_counted", Data: map[string]int{"total": len(candidates)}})

	result, err := h.searcher.RankCandidates(ctx, req, candidates, func(p ranker.Progress) {
		job.setProgress(p)
		job.SendEvent(JobEvent{
			Type: "progress",
			Data: map[string]any{
				"current": p.Current,
				"total":   p.Total,
				"path":    p.Path,
			},
		})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			if job.finish(JobStatusCancelled, "", nil) {
				job.SendEvent(JobEvent{Type: "cancelled", Message: "Job was cancelled"})
			}
			return
		}
		h.failJob(job, fmt.Sprintf("scan failed: %v", err))
		return
	}

	if job.finish(JobStatusCompleted, "", result) {
		log.WithFields(logrus.Fields{
			"matches": len(result.Matches),
			"skipped": len(result.Skipped),
		}).Info("Scan job completed")
		job.SendEvent(JobEvent{Type: "completed", Data: result})
	}
}

func (h *ScanHandler) failJob(job *ScanJob, message string) {
	if !job.finish(JobStatusFailed, message, nil) {
		return
	}
	h.log.WithField("job_id", job.ID).Warn(message)
	job.SendEvent(JobEvent{Type: "job_error", Message: message})
}
