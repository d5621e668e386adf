package configstore

import (
	"context"
	"slices"
	"sync"
)

type MemConfigStore struct {
	mu   sync.RWMutex
	Data map[string][]byte
}

var _ ConfigStore = (*MemConfigStore)(nil)

func NewMemConfigStore() *MemConfigStore {
	return &MemConfigStore{
		Data: make(map[string][]byte),
	}
}

func (s *MemConfigStore) Load(ctx context.Context, tenantID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.Data[tenantID]
	if !ok {
		return nil, nil
	}
	return slices.Clone(v), nil
}

func (s *MemConfigStore) Save(ctx context.Context, tenantID string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Data[tenantID] = slices.Clone(raw)
	return nil
}

func (s *MemConfigStore) Delete(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Data, tenantID)
	return nil
}
