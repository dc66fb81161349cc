package memory

import (
	"context"
	"sync"

	"assist/internal/core/domain"
)

// AccountStore stands in for the platform users collection.
type AccountStore struct {
	mu   sync.RWMutex
	byID map[string]domain.Account
}

func NewAccountStore(accounts ...domain.Account) *AccountStore {
	s := &AccountStore{byID: make(map[string]domain.Account)}
	for _, a := range accounts {
		s.byID[a.ID.Hex()] = a
	}
	return s
}

// Put adds or replaces an account.
func (s *AccountStore) Put(a domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[a.ID.Hex()] = a
}

func (s *AccountStore) GetByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &a, nil
}

func (s *AccountStore) GetByAssistKey(_ context.Context, key string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if key == "" {
		return nil, domain.ErrTenantNotFound
	}
	for _, a := range s.byID {
		if a.AssistKey == key {
			return &a, nil
		}
	}
	return nil, domain.ErrTenantNotFound
}

func (s *AccountStore) SetAssistKey(_ context.Context, id, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	if a.AssistKey != "" {
		return domain.ErrKeyAlreadyExists
	}
	a.AssistKey = key
	s.byID[id] = a
	return nil
}

func (s *AccountStore) Profiles(_ context.Context, ids []string) (map[string]domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Profile, len(ids))
	for _, id := range ids {
		if a, ok := s.byID[id]; ok {
			out[id] = a.Profile()
		}
	}
	return out, nil
}
