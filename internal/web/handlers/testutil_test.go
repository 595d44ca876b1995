package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/kozaktomas/photo-match/internal/config"
	"github.com/kozaktomas/photo-match/internal/fingerprint"
	"github.com/kozaktomas/photo-match/internal/scan"
	"github.com/kozaktomas/photo-match/internal/search"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Search: config.SearchConfig{
			TopK:       20,
			Workers:    2,
			Extensions: scan.DefaultExtensions,
		},
	}
}

// testLogger discards log output
func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// testFs creates an in-memory filesystem with a reference image and a small photo folder
func testFs(t *testing.T) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	writeTestPNG(t, fsys, "/ref.png", testPattern(false))
	writeTestPNG(t, fsys, "/photos/same.png", testPattern(false))
	writeTestPNG(t, fsys, "/photos/other.png", testPattern(true))
	if err := afero.WriteFile(fsys, "/photos/broken.jpg", []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return fsys
}

// testPattern creates a left/right split image
func testPattern(inverted bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := range 16 {
		for x := range 16 {
			if (x < 8) != inverted {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func writeTestPNG(t *testing.T, fsys afero.Fs, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := afero.WriteFile(fsys, path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// newTestScanHandler wires a scan handler over fsys
func newTestScanHandler(fsys afero.Fs) *ScanHandler {
	searcher := search.New(fsys, fingerprint.New(), search.WithWorkers(2), search.WithLogger(testLogger()))
	return NewScanHandler(searcher, fsys, NewJobManager(), testLogger())
}

// jsonRequest creates a request with a JSON body
func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// waitForStatus polls until the job reaches a terminal state
func waitForStatus(t *testing.T, job *ScanJob) JobStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if status := job.GetStatus(); isJobTerminal(status) {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish, status %s", job.ID, job.GetStatus())
	return ""
}

// waitForListener blocks until an event stream has subscribed to the job
func waitForListener(t *testing.T, job *ScanJob) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job.EventBroadcaster.mu.RLock()
		n := len(job.EventBroadcaster.listeners)
		job.EventBroadcaster.mu.RUnlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no listener subscribed to job %s", job.ID)
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
