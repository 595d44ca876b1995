package fingerprint

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/photo-match/internal/constants"
)

// Fingerprint is an immutable sequence of binary symbols. Fingerprints produced
// by an Engine always have exactly 64 symbols; the zero value is the empty
// fingerprint returned when an image cannot be hashed.
type Fingerprint struct {
	bits uint64 // symbol i is bit size-1-i
	size int
}

// FromBits wraps a raw 64-bit average hash.
func FromBits(bits uint64) Fingerprint {
	return Fingerprint{bits: bits, size: constants.HashBits}
}

// Parse reads a fingerprint from its binary form (1 to 64 '0'/'1' symbols)
// or from a hex form prefixed with "0x" or "a:" (16 hex digits).
func Parse(s string) (Fingerprint, error) {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"0x", "a:"} {
		if hex, ok := strings.CutPrefix(s, prefix); ok {
			if len(hex) != constants.HashBits/4 {
				return Fingerprint{}, fmt.Errorf("hex fingerprint must have %d digits, got %d", constants.HashBits/4, len(hex))
			}
			bits, err := strconv.ParseUint(hex, 16, 64)
			if err != nil {
				return Fingerprint{}, fmt.Errorf("parsing hex fingerprint: %w", err)
			}
			return FromBits(bits), nil
		}
	}

	if s == "" || len(s) > constants.HashBits {
		return Fingerprint{}, fmt.Errorf("fingerprint must have 1 to %d symbols, got %d", constants.HashBits, len(s))
	}
	var bits uint64
	for i, r := range s {
		switch r {
		case '1':
			bits |= 1 << (len(s) - 1 - i)
		case '0':
		default:
			return Fingerprint{}, fmt.Errorf("invalid symbol %q at position %d", r, i)
		}
	}
	return Fingerprint{bits: bits, size: len(s)}, nil
}

// Len returns the number of symbols.
func (f Fingerprint) Len() int {
	return f.size
}

// IsEmpty reports whether f is the empty (failure) fingerprint.
func (f Fingerprint) IsEmpty() bool {
	return f.size == 0
}

// Bits returns the raw symbols packed into the low Len() bits.
func (f Fingerprint) Bits() uint64 {
	return f.bits
}

// String returns the symbols as '0'/'1' characters in row-major order.
func (f Fingerprint) String() string {
	if f.size == 0 {
		return ""
	}
	return fmt.Sprintf("%0*b", f.size, f.bits)
}

// Hex returns the fingerprint as 16 hex digits, or "" when it is not 64 symbols long.
func (f Fingerprint) Hex() string {
	if f.size != constants.HashBits {
		return ""
	}
	return fmt.Sprintf("%016x", f.bits)
}

// MarshalJSON encodes the fingerprint as its binary string.
func (f Fingerprint) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON decodes a binary or hex string produced by MarshalJSON or Hex.
func (f *Fingerprint) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("fingerprint must be a string: %w", err)
	}
	if s == "" {
		*f = Fingerprint{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// FileHash pairs a file with its computed fingerprint.
type FileHash struct {
	Path        string      `json:"path"`
	Fingerprint Fingerprint `json:"fingerprint"`
	Hex         string      `json:"hex,omitempty"`
	Error       string      `json:"error,omitempty"`
	ComputedAt  string      `json:"computed_at"`
}

// FileHashBatch represents multiple files for batch output
type FileHashBatch struct {
	Files []FileHash `json:"files"`
	Count int        `json:"count"`
}

// NewFileHash builds a FileHash from a computation result.
func NewFileHash(path string, fp Fingerprint, err error) FileHash {
	h := FileHash{
		Path:        path,
		Fingerprint: fp,
		Hex:         fp.Hex(),
		ComputedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err != nil {
		h.Error = err.Error()
	}
	return h
}
