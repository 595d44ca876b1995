// Package constants provides shared constants used across the codebase.
package constants

// Handler constants
const (
	// MaxScanJobs is the number of finished scan jobs kept in memory before the oldest are dropped
	MaxScanJobs = 50

	// MaxTopK caps the top_k a client may request for one scan
	MaxTopK = 500
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)
