package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/spf13/afero"

	"github.com/kozaktomas/photo-match/internal/scan"
)

func imageRequest(path string) *http.Request {
	return httptest.NewRequest("GET", "/api/v1/images?path="+url.QueryEscape(path), nil)
}

func TestImageHandler_Get(t *testing.T) {
	handler := NewImageHandler(testFs(t), scan.DefaultExtensions)
	recorder := httptest.NewRecorder()

	handler.Get(recorder, imageRequest("/photos/same.png"))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "image/png")
	if recorder.Body.Len() == 0 {
		t.Error("expected image body")
	}
}

func TestImageHandler_Get_Errors(t *testing.T) {
	fsys := testFs(t)
	if err := afero.WriteFile(fsys, "/photos/notes.txt", []byte("hello"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := fsys.MkdirAll("/photos/dir.jpg", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"missing path", "", http.StatusBadRequest},
		{"not an image", "/photos/notes.txt", http.StatusForbidden},
		{"not found", "/photos/missing.jpg", http.StatusNotFound},
		{"directory", "/photos/dir.jpg", http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewImageHandler(fsys, scan.DefaultExtensions)
			recorder := httptest.NewRecorder()

			handler.Get(recorder, imageRequest(tc.path))

			assertStatusCode(t, recorder, tc.status)
		})
	}
}
