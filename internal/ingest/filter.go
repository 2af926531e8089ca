// Package ingest holds the gate the ingestion pipeline passes every
// candidate item through before importing it.
package ingest

import (
	"context"
	"fmt"

	"github.com/ignite/feed-aggregator/internal/domain"
	"github.com/ignite/feed-aggregator/internal/pkg/logger"
)

// Checker answers whether a permalink is blacklisted.
type Checker interface {
	Contains(ctx context.Context, permalink string) (bool, error)
}

// CandidateObserver counts filter outcomes.
type CandidateObserver interface {
	RecordCandidate(outcome string)
}

type noopObserver struct{}

func (noopObserver) RecordCandidate(string) {}

// Filter admits candidates whose permalink is not blacklisted.
type Filter struct {
	checker Checker
	obs     CandidateObserver
}

// NewFilter creates a filter. obs may be nil.
func NewFilter(checker Checker, obs CandidateObserver) *Filter {
	if obs == nil {
		obs = noopObserver{}
	}
	return &Filter{checker: checker, obs: obs}
}

// Admit reports whether c may be imported. A blacklisted candidate is a
// normal outcome: false with a nil error.
func (f *Filter) Admit(ctx context.Context, c domain.CandidateItem) (bool, error) {
	blocked, err := f.checker.Contains(ctx, c.Permalink)
	if err != nil {
		f.obs.RecordCandidate("error")
		return false, fmt.Errorf("check candidate %q: %w", c.Permalink, err)
	}
	if blocked {
		f.obs.RecordCandidate("skipped")
		logger.Debug("skipping blacklisted candidate", "candidate_id", c.ID, "permalink", c.Permalink)
		return false, nil
	}
	f.obs.RecordCandidate("admitted")
	return true, nil
}

// Result splits a batch by filter outcome. Order within each slice follows
// the input.
type Result struct {
	Admitted []domain.CandidateItem `json:"admitted"`
	Skipped  []domain.CandidateItem `json:"skipped"`
}

// Partition runs Admit over a batch and stops at the first error.
func (f *Filter) Partition(ctx context.Context, items []domain.CandidateItem) (Result, error) {
	res := Result{
		Admitted: make([]domain.CandidateItem, 0, len(items)),
		Skipped:  []domain.CandidateItem{},
	}
	for _, c := range items {
		ok, err := f.Admit(ctx, c)
		if err != nil {
			return Result{}, err
		}
		if ok {
			res.Admitted = append(res.Admitted, c)
		} else {
			res.Skipped = append(res.Skipped, c)
		}
	}
	return res, nil
}
