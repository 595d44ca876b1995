package handlers

import (
	"net/http"
	"runtime"

	"github.com/kozaktomas/photo-match/internal/config"
	"github.com/kozaktomas/photo-match/internal/constants"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	TopK       int      `json:"top_k"`
	MaxTopK    int      `json:"max_top_k"`
	Workers    int      `json:"workers"`
	Extensions []string `json:"extensions"`
	HashBits   int      `json:"hash_bits"`
}

// Get returns the effective search configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	workers := h.config.Search.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	respondJSON(w, http.StatusOK, ConfigResponse{
		TopK:       h.config.Search.TopK,
		MaxTopK:    constants.MaxTopK,
		Workers:    workers,
		Extensions: h.config.Search.Extensions,
		HashBits:   constants.HashBits,
	})
}
