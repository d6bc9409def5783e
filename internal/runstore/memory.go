package runstore

import (
	"context"
	"sync"
)

// memory keeps the most recent runs; older ones fall off the end.
const memoryStoreCap = 200

// MemoryStore is the default backend when no Redis is configured. Runs do
// not survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	runs      map[string]*Run
	artifacts map[string]*Artifacts
	order     []string
	processed map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:      make(map[string]*Run),
		artifacts: make(map[string]*Artifacts),
		processed: make(map[string]bool),
	}
}

func (s *MemoryStore) SaveRun(_ context.Context, run *Run, artifacts *Artifacts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; !exists {
		s.order = append([]string{run.ID}, s.order...)
	}
	s.runs[run.ID] = run
	if artifacts != nil {
		s.artifacts[run.ID] = artifacts
	}

	for len(s.order) > memoryStoreCap {
		last := s.order[len(s.order)-1]
		s.order = s.order[:len(s.order)-1]
		delete(s.runs, last)
		delete(s.artifacts, last)
	}
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run, nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]*Run, 0, limit)
	for _, id := range s.order[:limit] {
		out = append(out, s.runs[id])
	}
	return out, nil
}

func (s *MemoryStore) GetDataset(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[id]; !ok {
		return nil, ErrRunNotFound
	}
	a := s.artifacts[id]
	if a == nil || len(a.Dataset) == 0 {
		return nil, ErrNoDataset
	}
	return a.Dataset, nil
}

func (s *MemoryStore) GetPayloads(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[id]; !ok {
		return nil, ErrRunNotFound
	}
	a := s.artifacts[id]
	if a == nil || len(a.Payloads) == 0 {
		return nil, ErrNoDataset
	}
	return a.Payloads, nil
}

func (s *MemoryStore) MarkProcessed(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[key] = true
	return nil
}

func (s *MemoryStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processed[key], nil
}

func (s *MemoryStore) Close() error { return nil }
