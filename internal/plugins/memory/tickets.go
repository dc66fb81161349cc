package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"assist/internal/core/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TicketStore is an in-process domain.TicketRepository for single-node
// development and tests. Every method works on copies so callers never
// share state with the store.
type TicketStore struct {
	mu       sync.RWMutex
	tickets  map[primitive.ObjectID]*domain.Ticket
	settings *SettingsStore
}

func NewTicketStore(settings *SettingsStore) *TicketStore {
	return &TicketStore{
		tickets:  make(map[primitive.ObjectID]*domain.Ticket),
		settings: settings,
	}
}

func (s *TicketStore) Create(_ context.Context, t *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[t.ID] = cloneTicket(t)
	return nil
}

func (s *TicketStore) Get(_ context.Context, scope domain.TicketScope) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.match(scope)
	if err != nil {
		return nil, err
	}
	return cloneTicket(t), nil
}

func (s *TicketStore) AppendMessage(_ context.Context, scope domain.TicketScope, msg domain.Message, reopen bool) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.match(scope)
	if err != nil {
		return nil, err
	}
	t.Messages = append(t.Messages, cloneMessage(msg))
	if reopen {
		t.Status = domain.StatusOpen
	}
	t.UpdatedAt = msg.CreatedAt
	return cloneTicket(t), nil
}

func (s *TicketStore) ToggleStatus(_ context.Context, scope domain.TicketScope, now time.Time) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.match(scope)
	if err != nil {
		return nil, err
	}
	if t.Status == domain.StatusOpen {
		t.Status = domain.StatusClosed
	} else {
		t.Status = domain.StatusOpen
	}
	t.UpdatedAt = now
	return cloneTicket(t), nil
}

func (s *TicketStore) UpdateVisitor(_ context.Context, scope domain.TicketScope, name, email string, now time.Time) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.match(scope)
	if err != nil {
		return nil, err
	}
	t.Visitor.Name = name
	t.Visitor.Email = email
	for i := range t.Messages {
		m := &t.Messages[i]
		if !m.IsBot && m.SentBy.Kind == domain.AuthorVisitor && m.SentBy.ID == t.Visitor.ID {
			m.SentBy.Name = name
		}
	}
	t.UpdatedAt = now
	return cloneTicket(t), nil
}

func (s *TicketStore) MarkSeen(_ context.Context, scope domain.TicketScope, viewerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.match(scope)
	if err != nil {
		return err
	}
	for i := range t.Messages {
		if !t.Messages[i].SeenByParticipant(viewerID) {
			t.Messages[i].SeenBy = append(t.Messages[i].SeenBy, viewerID)
		}
	}
	return nil
}

func (s *TicketStore) ClearReceivedMail(_ context.Context, scope domain.TicketScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.match(scope)
	if err != nil {
		return err
	}
	t.Visitor.ReceivedMail = false
	return nil
}

func (s *TicketStore) List(_ context.Context, q domain.TicketQuery) ([]domain.TicketSummary, int64, error) {
	search := strings.ToLower(q.Search)
	s.mu.RLock()
	var out []domain.TicketSummary
	for _, t := range s.tickets {
		if t.AppKey != q.AppKey {
			continue
		}
		if q.VisitorID != "" && t.Visitor.ID != q.VisitorID {
			continue
		}
		if q.Status != "" && t.Status != q.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Visitor.Name), search) {
			continue
		}
		out = append(out, domain.Summarize(t, q.ViewerID))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.LastMessageAt.Equal(b.LastMessageAt) {
			return a.LastMessageAt.After(b.LastMessageAt)
		}
		if a.UnreadCount != b.UnreadCount {
			return a.UnreadCount > b.UnreadCount
		}
		return a.ID.Hex() > b.ID.Hex()
	})
	total := int64(len(out))
	return window(out, q.Skip, q.Limit), total, nil
}

func (s *TicketStore) Messages(_ context.Context, scope domain.TicketScope, q domain.MessageQuery) ([]domain.Message, int64, error) {
	search := strings.ToLower(q.Search)
	s.mu.RLock()
	t, err := s.match(scope)
	if err != nil {
		s.mu.RUnlock()
		return nil, 0, err
	}
	out := make([]domain.Message, 0, len(t.Messages))
	for i := len(t.Messages) - 1; i >= 0; i-- {
		m := t.Messages[i]
		if search != "" && !strings.Contains(strings.ToLower(m.Message), search) {
			continue
		}
		out = append(out, cloneMessage(m))
	}
	s.mu.RUnlock()
	total := int64(len(out))
	return window(out, q.Skip, q.Limit), total, nil
}

func (s *TicketStore) PendingNotifications(ctx context.Context) ([]domain.PendingNotification, error) {
	s.mu.RLock()
	var out []domain.PendingNotification
	for _, t := range s.tickets {
		if t.Visitor.ReceivedMail {
			continue
		}
		unseen := unseenByVisitor(t)
		if unseen == 0 {
			continue
		}
		out = append(out, domain.PendingNotification{
			TicketID:    t.ID,
			AppKey:      t.AppKey,
			Visitor:     t.Visitor,
			UnseenCount: unseen,
		})
	}
	s.mu.RUnlock()

	for i := range out {
		if st, err := s.settings.GetByAppKey(ctx, out[i].AppKey); err == nil {
			out[i].TenantName = st.Name
			out[i].TenantURL = st.URL
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketID.Hex() < out[j].TicketID.Hex() })
	return out, nil
}

func (s *TicketStore) MarkMailed(_ context.Context, ids []primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if t, ok := s.tickets[id]; ok && unseenByVisitor(t) > 0 {
			t.Visitor.ReceivedMail = true
		}
	}
	return nil
}

func unseenByVisitor(t *domain.Ticket) int {
	n := 0
	for _, m := range t.Messages {
		if !m.SeenByParticipant(t.Visitor.ID) {
			n++
		}
	}
	return n
}

// match must be called with s.mu held.
func (s *TicketStore) match(scope domain.TicketScope) (*domain.Ticket, error) {
	t, ok := s.tickets[scope.TicketID]
	if !ok || t.AppKey != scope.AppKey {
		return nil, domain.ErrTicketNotFound
	}
	if scope.VisitorID != "" && t.Visitor.ID != scope.VisitorID {
		return nil, domain.ErrTicketNotFound
	}
	return t, nil
}

func window[T any](items []T, skip, limit int64) []T {
	if skip >= int64(len(items)) {
		return []T{}
	}
	end := int64(len(items))
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return items[skip:end]
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	c := *t
	c.Messages = make([]domain.Message, len(t.Messages))
	for i, m := range t.Messages {
		c.Messages[i] = cloneMessage(m)
	}
	return &c
}

func cloneMessage(m domain.Message) domain.Message {
	m.SeenBy = append([]string{}, m.SeenBy...)
	if m.Images != nil {
		m.Images = append([]string{}, m.Images...)
	}
	return m
}
