// Package ranker ranks candidate images by average-hash similarity to a reference image.
package ranker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/photo-match/internal/constants"
	"github.com/kozaktomas/photo-match/internal/fingerprint"
)

var (
	// ErrNoReference is returned when no reference image was supplied.
	ErrNoReference = errors.New("no reference image selected")

	// ErrReferenceUndecodable is returned when the reference image cannot be hashed.
	ErrReferenceUndecodable = errors.New("reference image cannot be decoded")
)

// Hasher computes the fingerprint of a file. *fingerprint.Engine implements it.
type Hasher interface {
	ComputeFile(fsys afero.Fs, path string) (fingerprint.Fingerprint, error)
}

// Match is a candidate file with its similarity to the reference.
type Match struct {
	Path       string  `json:"path"`
	Distance   int     `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// Skipped records a candidate that produced no match.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result is the outcome of one ranking pass.
type Result struct {
	Reference fingerprint.Fingerprint `json:"reference"`
	Matches   []Match                 `json:"matches"`
	Skipped   []Skipped               `json:"skipped,omitempty"`
	Scanned   int                     `json:"scanned"`
}

// Progress reports how many candidates have been fingerprinted so far.
type Progress struct {
	Current int
	Total   int
	Path    string
}

// Ranker fingerprints candidates in parallel and returns the closest ones.
// It holds no state between calls.
type Ranker struct {
	hasher  Hasher
	fs      afero.Fs
	workers int
	topK    int
	log     logrus.FieldLogger
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithWorkers sets the number of candidates fingerprinted concurrently.
func WithWorkers(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithTopK sets how many matches Rank returns.
func WithTopK(k int) Option {
	return func(r *Ranker) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithLogger sets the logger used for per-candidate diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Ranker) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates a ranker reading files from fsys.
func New(hasher Hasher, fsys afero.Fs, opts ...Option) *Ranker {
	r := &Ranker{
		hasher:  hasher,
		fs:      fsys,
		workers: runtime.NumCPU(),
		topK:    constants.DefaultTopK,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// candidateResult holds the outcome for the candidate at the same index.
type candidateResult struct {
	fp      fingerprint.Fingerprint
	skipped string
}

// Rank fingerprints the reference once and every candidate once, then returns
// the topK candidates sorted by descending similarity. Candidates that cannot be
// decoded are skipped; any other failure aborts the whole batch.
// onProgress may be nil and may be called from several goroutines at once.
func (r *Ranker) Rank(ctx context.Context, reference string, candidates []string, onProgress func(Progress)) (*Result, error) {
	if reference == "" {
		return nil, ErrNoReference
	}

	refFP, err := r.hasher.ComputeFile(r.fs, reference)
	if err != nil {
		if errors.Is(err, fingerprint.ErrUndecodable) {
			return nil, fmt.Errorf("%w: %v", ErrReferenceUndecodable, err)
		}
		return nil, fmt.Errorf("fingerprinting reference: %w", err)
	}

	results, err := r.fingerprintAll(ctx, candidates, onProgress)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Reference: refFP,
		Matches:   make([]Match, 0, len(candidates)),
		Scanned:   len(candidates),
	}
	for i := range results {
		path := candidates[i]
		if results[i].skipped != "" {
			res.Skipped = append(res.Skipped, Skipped{Path: path, Reason: results[i].skipped})
			continue
		}
		d := fingerprint.HammingDistance(refFP, results[i].fp)
		res.Matches = append(res.Matches, Match{
			Path:       path,
			Distance:   d,
			Similarity: fingerprint.Similarity(d),
		})
	}

	sortMatches(res.Matches)
	if len(res.Matches) > r.topK {
		res.Matches = res.Matches[:r.topK]
	}
	return res, nil
}

// fingerprintAll computes candidate fingerprints with a bounded worker pool.
// Each worker writes only its own slot, so no locking is needed before the merge.
func (r *Ranker) fingerprintAll(ctx context.Context, candidates []string, onProgress func(Progress)) ([]candidateResult, error) {
	results := make([]candidateResult, len(candidates))
	var processed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, path := range candidates {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			fp, err := r.hasher.ComputeFile(r.fs, path)
			switch {
			case errors.Is(err, fingerprint.ErrUndecodable):
				results[i].skipped = err.Error()
				r.log.WithFields(logrus.Fields{"path": path, "reason": err.Error()}).Debug("Skipping undecodable candidate")
			case err != nil:
				return fmt.Errorf("fingerprinting candidate: %w", err)
			case fp.IsEmpty():
				results[i].skipped = "empty fingerprint"
				r.log.WithField("path", path).Debug("Skipping candidate with empty fingerprint")
			default:
				results[i].fp = fp
			}

			current := int(processed.Add(1))
			if onProgress != nil {
				onProgress(Progress{Current: current, Total: len(candidates), Path: path})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// A cancellation that arrived while the loop was stopping still aborts the batch.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// sortMatches orders by similarity (descending), then distance, keeping
// enumeration order for exact ties.
func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Distance < matches[j].Distance
	})
}
