package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/kozaktomas/photo-match/internal/scan"
)

// ImageHandler serves image files so matches can be viewed
type ImageHandler struct {
	fs         afero.Fs
	extensions []string
}

// NewImageHandler creates a new image handler
func NewImageHandler(fsys afero.Fs, extensions []string) *ImageHandler {
	return &ImageHandler{fs: fsys, extensions: extensions}
}

// Get streams the file named by the path query parameter. Only files with an
// accepted image extension are served.
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	if !scan.IsImage(path, h.extensions) {
		respondError(w, http.StatusForbidden, "not an image file")
		return
	}

	f, err := h.fs.Open(path)
	if err != nil {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		respondError(w, http.StatusNotFound, "image not found")
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}
