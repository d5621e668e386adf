package countstore

import (
	"context"
	"sync"
	"time"
)

// In-process counters. Day and hour buckets are never expired, so this is only suitable for tests and short-lived processes.
type MemCountStore struct {
	// defaults to time.Now; decides which day and hour buckets an increment lands in
	Clock func() time.Time

	mu       sync.RWMutex
	counts   map[string]int
	distinct map[string]map[string]struct{}
}

var _ CountStore = (*MemCountStore)(nil)

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		Clock:    time.Now,
		counts:   make(map[string]int),
		distinct: make(map[string]map[string]struct{}),
	}
}

func (s *MemCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	k, err := periodBucket(name, val, period, s.Clock())
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[k], nil
}

func (s *MemCountStore) GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error) {
	k, err := periodBucket(name, bucket, period, s.Clock())
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.distinct[k]), nil
}

// The whole batch is applied under one lock, so readers never see part of it.
func (s *MemCountStore) IncrementMany(ctx context.Context, counters []Counter) error {
	now := s.Clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range counters {
		for _, p := range periods {
			k, err := periodBucket(c.Name, c.Val, p.name, now)
			if err != nil {
				return err
			}
			if !c.Distinct() {
				s.counts[k]++
				continue
			}
			set, ok := s.distinct[k]
			if !ok {
				set = make(map[string]struct{})
				s.distinct[k] = set
			}
			set[c.Member] = struct{}{}
		}
	}
	return nil
}
