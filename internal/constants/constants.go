// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Fingerprint constants
const (
	// HashSide is the width and height of the downsampled image used for hashing
	HashSide = 8

	// HashBits is the number of symbols in a fingerprint (HashSide * HashSide)
	HashBits = HashSide * HashSide

	// MismatchDistance is the distance reported for fingerprints that cannot be compared.
	// It is far outside [0, HashBits] so such pairs always sort last.
	MismatchDistance = 9999
)

// Ranking constants
const (
	// DefaultTopK is the default number of matches returned by a scan
	DefaultTopK = 20
)
