package handlers

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/kozaktomas/photo-match/internal/fingerprint"
)

// FingerprintHandler computes fingerprints for single files
type FingerprintHandler struct {
	engine *fingerprint.Engine
	fs     afero.Fs
	log    logrus.FieldLogger
}

// NewFingerprintHandler creates a new fingerprint handler
func NewFingerprintHandler(engine *fingerprint.Engine, fsys afero.Fs, log logrus.FieldLogger) *FingerprintHandler {
	return &FingerprintHandler{engine: engine, fs: fsys, log: log}
}

// FingerprintRequest names the file to hash
type FingerprintRequest struct {
	Path string `json:"path"`
}

// Compute returns the average hash of one image file
func (h *FingerprintHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var req FingerprintRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}

	fp, err := h.engine.ComputeFile(h.fs, req.Path)
	switch {
	case errors.Is(err, fingerprint.ErrUndecodable):
		respondError(w, http.StatusUnprocessableEntity, "image cannot be decoded")
		return
	case errors.Is(err, os.ErrNotExist):
		respondError(w, http.StatusNotFound, "file not found")
		return
	case err != nil:
		h.log.WithField("path", sanitizeForLog(req.Path)).WithError(err).Error("Fingerprint failed")
		respondError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	respondJSON(w, http.StatusOK, fingerprint.NewFileHash(req.Path, fp, nil))
}
