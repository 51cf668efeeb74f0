package input

import (
	"sync"
)

// Origin tags where a candidate came from. Used only for reporting.
type Origin string

const (
	OriginPriority  Origin = "priority"
	OriginCatalog   Origin = "catalog"
	OriginWordlist  Origin = "wordlist"
	OriginSynthetic Origin = "synthetic"
)

// Candidate is a single access token to be tested, immutable once produced.
type Candidate struct {
	Code   string
	Origin Origin
}

// Source is a lazy, finite, restartable sequence of candidates. Next is safe
// for concurrent use by all workers; an exhausted source returns ok=false.
// The engine does not deduplicate across origins - that is the source's job.
type Source interface {
	// Next returns the next candidate, or ok=false when exhausted.
	Next() (Candidate, bool)
	// Reset restarts the sequence from the beginning.
	Reset()
	// Size returns the total number of candidates the source will yield.
	Size() int
}

// SliceSource yields a fixed in-memory list of candidates in order.
type SliceSource struct {
	mu         sync.Mutex
	candidates []Candidate
	pos        int
}

// NewSliceSource builds a SliceSource over codes, all tagged with origin.
func NewSliceSource(codes []string, origin Origin) *SliceSource {
	candidates := make([]Candidate, 0, len(codes))
	for _, code := range codes {
		candidates = append(candidates, Candidate{Code: code, Origin: origin})
	}
	return &SliceSource{candidates: candidates}
}

// NewTieredSource yields the priority tier first, then the remaining codes,
// deduplicating across the two tiers.
func NewTieredSource(priority []string, rest []string) *SliceSource {
	seen := make(map[string]struct{}, len(priority)+len(rest))
	candidates := make([]Candidate, 0, len(priority)+len(rest))
	for _, code := range priority {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		candidates = append(candidates, Candidate{Code: code, Origin: OriginPriority})
	}
	for _, code := range rest {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		candidates = append(candidates, Candidate{Code: code, Origin: OriginCatalog})
	}
	return &SliceSource{candidates: candidates}
}

func (s *SliceSource) Next() (Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.candidates) {
		return Candidate{}, false
	}
	c := s.candidates[s.pos]
	s.pos++
	return c, true
}

func (s *SliceSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = 0
}

func (s *SliceSource) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.candidates)
}
