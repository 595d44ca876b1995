// Package search runs one similarity search: it validates the inputs,
// enumerates candidate images under a folder and ranks them against a reference.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/kozaktomas/photo-match/internal/ranker"
	"github.com/kozaktomas/photo-match/internal/scan"
)

var (
	// ErrNoReference is returned when the request names no reference image.
	ErrNoReference = errors.New("please select a reference image")

	// ErrNoFolder is returned when the request names no folder to search.
	ErrNoFolder = errors.New("please select a folder to search")
)

// Request describes a single search.
type Request struct {
	Reference string `json:"reference"`
	Folder    string `json:"folder"`
	TopK      int    `json:"top_k,omitempty"`
	Workers   int    `json:"workers,omitempty"`
}

// Validate reports missing inputs. Both missing values are joined into one error
// so callers can show a single message.
func (r Request) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Reference) == "" {
		errs = append(errs, ErrNoReference)
	}
	if strings.TrimSpace(r.Folder) == "" {
		errs = append(errs, ErrNoFolder)
	}
	return errors.Join(errs...)
}

// Searcher holds the collaborators shared by every search.
type Searcher struct {
	fs         afero.Fs
	hasher     ranker.Hasher
	extensions []string
	workers    int
	topK       int
	log        logrus.FieldLogger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithExtensions sets the accepted image extensions.
func WithExtensions(exts []string) Option {
	return func(s *Searcher) { s.extensions = exts }
}

// WithWorkers sets the default worker count for requests that do not specify one.
func WithWorkers(n int) Option {
	return func(s *Searcher) { s.workers = n }
}

// WithTopK sets the default result count for requests that do not specify one.
func WithTopK(k int) Option {
	return func(s *Searcher) { s.topK = k }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Searcher) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a Searcher.
func New(fsys afero.Fs, hasher ranker.Hasher, opts ...Option) *Searcher {
	s := &Searcher{
		fs:         fsys,
		hasher:     hasher,
		extensions: scan.DefaultExtensions,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Candidates validates the request and lists the images that would be ranked.
func (s *Searcher) Candidates(req Request) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	paths, err := scan.Images(s.fs, req.Folder, s.extensions)
	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}
	return paths, nil
}

// Run performs the search. Missing inputs are refused before the folder is read.
func (s *Searcher) Run(ctx context.Context, req Request, onProgress func(ranker.Progress)) (*ranker.Result, error) {
	candidates, err := s.Candidates(req)
	if err != nil {
		return nil, err
	}
	return s.RankCandidates(ctx, req, candidates, onProgress)
}

// RankCandidates ranks an already enumerated candidate list. Callers that need
// the candidate count up front (for progress display) use Candidates first.
func (s *Searcher) RankCandidates(ctx context.Context, req Request, candidates []string, onProgress func(ranker.Progress)) (*ranker.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"reference":  req.Reference,
		"folder":     req.Folder,
		"candidates": len(candidates),
	})
	log.Debug("Ranking candidates")

	r := ranker.New(s.hasher, s.fs,
		ranker.WithWorkers(firstPositive(req.Workers, s.workers)),
		ranker.WithTopK(firstPositive(req.TopK, s.topK)),
		ranker.WithLogger(s.log),
	)
	res, err := r.Rank(ctx, req.Reference, candidates, onProgress)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"matches": len(res.Matches),
		"skipped": len(res.Skipped),
	}).Info("Search finished")
	return res, nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
