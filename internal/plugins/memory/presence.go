package memory

import (
	"context"
	"sort"
	"sync"

	"assist/internal/core/domain"
)

type presenceKey struct {
	channel string
	role    domain.Role
}

// PresenceStore keeps connection counters in process memory.
type PresenceStore struct {
	mu     sync.Mutex
	counts map[presenceKey]map[string]int64
}

func NewPresenceStore() *PresenceStore {
	return &PresenceStore{counts: make(map[presenceKey]map[string]int64)}
}

func (p *PresenceStore) MarkOnline(_ context.Context, channel string, role domain.Role, participantID string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := presenceKey{channel, role}
	if p.counts[k] == nil {
		p.counts[k] = make(map[string]int64)
	}
	p.counts[k][participantID]++
	return p.counts[k][participantID], nil
}

func (p *PresenceStore) MarkOffline(_ context.Context, channel string, role domain.Role, participantID string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := presenceKey{channel, role}
	n := p.counts[k][participantID] - 1
	if n <= 0 {
		delete(p.counts[k], participantID)
		if len(p.counts[k]) == 0 {
			delete(p.counts, k)
		}
		return 0, nil
	}
	p.counts[k][participantID] = n
	return n, nil
}

func (p *PresenceStore) Online(_ context.Context, channel string, role domain.Role) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.counts[presenceKey{channel, role}]))
	for id := range p.counts[presenceKey{channel, role}] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
