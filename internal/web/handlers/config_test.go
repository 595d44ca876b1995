package handlers

import (
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/kozaktomas/photo-match/internal/constants"
)

func TestConfigHandler_Get(t *testing.T) {
	handler := NewConfigHandler(testConfig())
	recorder := httptest.NewRecorder()

	handler.Get(recorder, httptest.NewRequest("GET", "/api/v1/config", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var result ConfigResponse
	parseJSONResponse(t, recorder, &result)

	if result.TopK != 20 {
		t.Errorf("expected top_k 20, got %d", result.TopK)
	}
	if result.Workers != 2 {
		t.Errorf("expected workers 2, got %d", result.Workers)
	}
	if result.MaxTopK != constants.MaxTopK {
		t.Errorf("expected max_top_k %d, got %d", constants.MaxTopK, result.MaxTopK)
	}
	if result.HashBits != 64 {
		t.Errorf("expected hash_bits 64, got %d", result.HashBits)
	}
	if len(result.Extensions) != 4 {
		t.Errorf("expected 4 extensions, got %v", result.Extensions)
	}
}

func TestConfigHandler_Get_AutoWorkers(t *testing.T) {
	cfg := testConfig()
	cfg.Search.Workers = 0
	handler := NewConfigHandler(cfg)
	recorder := httptest.NewRecorder()

	handler.Get(recorder, httptest.NewRequest("GET", "/api/v1/config", nil))

	var result ConfigResponse
	parseJSONResponse(t, recorder, &result)
	if result.Workers != runtime.NumCPU() {
		t.Errorf("expected workers %d, got %d", runtime.NumCPU(), result.Workers)
	}
}
