package memory

import (
	"context"
	"sync"
	"time"

	"assist/internal/core/domain"
)

type SettingsStore struct {
	mu    sync.RWMutex
	byKey map[string]domain.Settings
}

func NewSettingsStore() *SettingsStore {
	return &SettingsStore{byKey: make(map[string]domain.Settings)}
}

func (s *SettingsStore) Ensure(_ context.Context, defaults *domain.Settings) (*domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byKey[defaults.AppKey]
	if !ok {
		st = *defaults
		s.byKey[defaults.AppKey] = st
	}
	return &st, nil
}

func (s *SettingsStore) GetByAppKey(_ context.Context, appKey string) (*domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.byKey[appKey]
	if !ok {
		return nil, domain.ErrSettingsNotFound
	}
	return &st, nil
}

func (s *SettingsStore) Update(_ context.Context, appKey string, patch domain.SettingsPatch, now time.Time) (*domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byKey[appKey]
	if !ok {
		return nil, domain.ErrSettingsNotFound
	}
	if patch.Name != nil {
		st.Name = *patch.Name
	}
	if patch.Color != nil {
		st.Color = *patch.Color
	}
	if patch.URL != nil {
		st.URL = *patch.URL
	}
	st.UpdatedAt = now
	s.byKey[appKey] = st
	return &st, nil
}
