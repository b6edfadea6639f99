package framework

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicateResult is returned when a task id is recorded twice.
var ErrDuplicateResult = errors.New("task already recorded")

// ResultStore maps task ids to results or missing markers for one run.
// Each id is written at most once. Safe for concurrent use.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]AnalysisResult
	missing map[string]MissingTask
}

// NewResultStore returns an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		results: make(map[string]AnalysisResult),
		missing: make(map[string]MissingTask),
	}
}

// Put records a result.
func (s *ResultStore) Put(r AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seenLocked(r.TaskID) {
		return fmt.Errorf("%w: %s", ErrDuplicateResult, r.TaskID)
	}

	s.results[r.TaskID] = r

	return nil
}

// MarkMissing records that a task produced no result.
func (s *ResultStore) MarkMissing(m MissingTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seenLocked(m.Task.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateResult, m.Task.ID)
	}

	s.missing[m.Task.ID] = m

	return nil
}

// AddBatch records a whole batch. Duplicates are skipped and reported.
func (s *ResultStore) AddBatch(b Batch) error {
	var errs []error

	for _, r := range b.Results {
		err := s.Put(r)
		if err != nil {
			errs = append(errs, err)
		}
	}

	for _, m := range b.Missing {
		err := s.MarkMissing(m)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Get returns the result for id.
func (s *ResultStore) Get(id string) (AnalysisResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[id]

	return r, ok
}

// Missing returns the missing marker for id.
func (s *ResultStore) Missing(id string) (MissingTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.missing[id]

	return m, ok
}

// Counts returns the number of results and missing markers.
func (s *ResultStore) Counts() (results, missing int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.results), len(s.missing)
}

func (s *ResultStore) seenLocked(id string) bool {
	_, hasResult := s.results[id]
	_, hasMissing := s.missing[id]

	return hasResult || hasMissing
}
