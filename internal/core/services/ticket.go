package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"assist/internal/core/contracts"
	"assist/internal/core/domain"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	uploadParallel   = 4
)

type TicketCreated struct {
	Ticket    *domain.Ticket `json:"ticket"`
	OwnerName string         `json:"ownerName"`
}

// MessageReceipt is returned after an append: the ticket as the author now
// sees it plus the stored message.
type MessageReceipt struct {
	Ticket  domain.TicketSummary `json:"ticket"`
	Message domain.Message       `json:"message"`
}

type Page[T any] struct {
	Data       []T   `json:"data"`
	TotalCount int64 `json:"totalCount"`
}

type ListParams struct {
	Skip   int64
	Limit  int64
	Status string
	Search string
}

// MessageView is a message as rendered to a reader. SentBy holds a
// domain.Profile for account authors and the stored domain.Author otherwise.
type MessageView struct {
	ID        primitive.ObjectID `json:"_id"`
	Message   string             `json:"message,omitempty"`
	Images    []string           `json:"images,omitempty"`
	Type      domain.MessageType `json:"type"`
	SentBy    any                `json:"sentBy"`
	SeenBy    []string           `json:"seenBy"`
	IsBot     bool               `json:"isBot"`
	CreatedAt time.Time          `json:"createdAt"`
}

type TicketService struct {
	tickets  domain.TicketRepository
	accounts domain.AccountRepository
	uploader contracts.Uploader
	clock    clockwork.Clock
	log      *slog.Logger
}

func NewTicketService(
	log *slog.Logger,
	tickets domain.TicketRepository,
	accounts domain.AccountRepository,
	uploader contracts.Uploader,
	clk clockwork.Clock,
) *TicketService {
	return &TicketService{
		log:      log,
		tickets:  tickets,
		accounts: accounts,
		uploader: uploader,
		clock:    clk,
	}
}

func (s *TicketService) CreateVisitorTicket(
	ctx context.Context,
	appKey string,
	visitor domain.Visitor,
	text string,
) (*TicketCreated, error) {
	ctx, span := tracer.Start(ctx, "TicketService.CreateVisitorTicket", trace.WithAttributes(
		attribute.String("app_key", appKey),
		attribute.String("visitor_id", visitor.ID),
	))
	defer span.End()
	if visitor.ID == "" {
		return nil, domain.ErrInvalidUserID
	}
	owner, err := s.accounts.GetByAssistKey(ctx, appKey)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "tickets - create visitor ticket - tenant lookup failed", "app_key", appKey, "err", err)
		return nil, err
	}
	now := s.clock.Now()
	visitor.ReceivedMail = false
	t := &domain.Ticket{
		ID:        primitive.NewObjectID(),
		AppKey:    appKey,
		Visitor:   visitor,
		Status:    domain.StatusOpen,
		Messages:  []domain.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if strings.TrimSpace(text) != "" {
		t.Messages = append(t.Messages, domain.NewTextMessage(domain.VisitorAuthor(visitor), text, []string{visitor.ID}, now))
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		s.log.ErrorContext(ctx, "tickets - create visitor ticket - insert failed", "app_key", appKey, "err", err)
		return nil, err
	}
	s.log.InfoContext(ctx, "tickets - create visitor ticket - success", "ticket_id", t.ID.Hex(), "app_key", appKey, "visitor_id", visitor.ID)
	return &TicketCreated{Ticket: t, OwnerName: owner.DisplayName()}, nil
}

func (s *TicketService) PostAccountMessage(ctx context.Context, ticketID, accountID, text string) (*MessageReceipt, error) {
	ctx, span := tracer.Start(ctx, "TicketService.PostAccountMessage", trace.WithAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("account_id", accountID),
	))
	defer span.End()
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyMessage
	}
	_, scope, err := s.accountScope(ctx, ticketID, accountID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	msg := domain.NewTextMessage(domain.UserAuthor(accountID), text, []string{accountID}, s.clock.Now())
	return s.append(ctx, scope, msg, accountID)
}

func (s *TicketService) PostVisitorMessage(ctx context.Context, ticketID, visitorID, appKey, text string) (*MessageReceipt, error) {
	ctx, span := tracer.Start(ctx, "TicketService.PostVisitorMessage", trace.WithAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("visitor_id", visitorID),
	))
	defer span.End()
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyMessage
	}
	t, scope, err := s.visitorTicket(ctx, ticketID, visitorID, appKey)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	msg := domain.NewTextMessage(domain.VisitorAuthor(t.Visitor), text, []string{visitorID}, s.clock.Now())
	return s.append(ctx, scope, msg, visitorID)
}

// PostBotMessage appends an automated message on behalf of the tenant owner.
// It neither reopens the ticket nor marks the message seen.
func (s *TicketService) PostBotMessage(ctx context.Context, ticketID, appKey, text string) error {
	ctx, span := tracer.Start(ctx, "TicketService.PostBotMessage", trace.WithAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("app_key", appKey),
	))
	defer span.End()
	id, err := parseTicketID(ticketID)
	if err != nil {
		return err
	}
	owner, err := s.accounts.GetByAssistKey(ctx, appKey)
	if err != nil {
		span.RecordError(err)
		return err
	}
	msg := domain.NewTextMessage(domain.UserAuthor(owner.ID.Hex()), text, nil, s.clock.Now())
	msg.IsBot = true
	if _, err := s.tickets.AppendMessage(ctx, domain.TicketScope{TicketID: id, AppKey: appKey}, msg, false); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "tickets - post bot message - append failed", "ticket_id", ticketID, "err", err)
		return err
	}
	return nil
}

func (s *TicketService) PostAccountImages(ctx context.Context, ticketID, accountID string, files []contracts.File) (*MessageReceipt, error) {
	ctx, span := tracer.Start(ctx, "TicketService.PostAccountImages", trace.WithAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.Int("files", len(files)),
	))
	defer span.End()
	if len(files) == 0 {
		return nil, domain.ErrFilesNotFound
	}
	_, scope, err := s.accountScope(ctx, ticketID, accountID)
	if err != nil {
		return nil, err
	}
	if _, err := s.tickets.Get(ctx, scope); err != nil {
		return nil, err
	}
	urls, err := s.uploadAll(ctx, files)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	msg := domain.NewImageMessage(domain.UserAuthor(accountID), urls, []string{accountID}, s.clock.Now())
	return s.append(ctx, scope, msg, accountID)
}

func (s *TicketService) PostVisitorImages(ctx context.Context, ticketID, visitorID, appKey string, files []contracts.File) (*MessageReceipt, error) {
	ctx, span := tracer.Start(ctx, "TicketService.PostVisitorImages", trace.WithAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.Int("files", len(files)),
	))
	defer span.End()
	if len(files) == 0 {
		return nil, domain.ErrFilesNotFound
	}
	t, scope, err := s.visitorTicket(ctx, ticketID, visitorID, appKey)
	if err != nil {
		return nil, err
	}
	urls, err := s.uploadAll(ctx, files)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	msg := domain.NewImageMessage(domain.VisitorAuthor(t.Visitor), urls, []string{visitorID}, s.clock.Now())
	return s.append(ctx, scope, msg, visitorID)
}

func (s *TicketService) ToggleStatus(ctx context.Context, ticketID, accountID string) (*domain.TicketSummary, error) {
	ctx, span := tracer.Start(ctx, "TicketService.ToggleStatus", trace.WithAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("account_id", accountID),
	))
	defer span.End()
	_, scope, err := s.accountScope(ctx, ticketID, accountID)
	if err != nil {
		return nil, err
	}
	t, err := s.tickets.ToggleStatus(ctx, scope, s.clock.Now())
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "tickets - toggle status - update failed", "ticket_id", ticketID, "err", err)
		return nil, err
	}
	s.log.InfoContext(ctx, "tickets - toggle status - success", "ticket_id", ticketID, "status", t.Status)
	sum := domain.Summarize(t, accountID)
	return &sum, nil
}

// UpdateVisitorData changes the visitor snapshot. Blank fields keep their
// current value.
func (s *TicketService) UpdateVisitorData(ctx context.Context, ticketID, visitorID, appKey, name, email string) (*domain.Ticket, error) {
	ctx, span := tracer.Start(ctx, "TicketService.UpdateVisitorData", trace.WithAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("visitor_id", visitorID),
	))
	defer span.End()
	t, scope, err := s.visitorTicket(ctx, ticketID, visitorID, appKey)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		name = t.Visitor.Name
	}
	if email == "" {
		email = t.Visitor.Email
	}
	updated, err := s.tickets.UpdateVisitor(ctx, scope, name, email, s.clock.Now())
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "tickets - update visitor data - update failed", "ticket_id", ticketID, "err", err)
		return nil, err
	}
	return updated, nil
}

func (s *TicketService) AccountTickets(ctx context.Context, accountID string, p ListParams) (*Page[domain.TicketSummary], error) {
	ctx, span := tracer.Start(ctx, "TicketService.AccountTickets")
	defer span.End()
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.AssistKey == "" {
		return &Page[domain.TicketSummary]{Data: []domain.TicketSummary{}}, nil
	}
	return s.list(ctx, domain.TicketQuery{AppKey: acc.AssistKey, ViewerID: accountID}, p)
}

func (s *TicketService) VisitorTickets(ctx context.Context, visitorID, appKey string, p ListParams) (*Page[domain.TicketSummary], error) {
	ctx, span := tracer.Start(ctx, "TicketService.VisitorTickets")
	defer span.End()
	if visitorID == "" {
		return nil, domain.ErrInvalidUserID
	}
	return s.list(ctx, domain.TicketQuery{AppKey: appKey, VisitorID: visitorID, ViewerID: visitorID}, p)
}

func (s *TicketService) AccountTicket(ctx context.Context, ticketID, accountID string) (*domain.TicketSummary, error) {
	_, scope, err := s.accountScope(ctx, ticketID, accountID)
	if err != nil {
		return nil, err
	}
	t, err := s.tickets.Get(ctx, scope)
	if err != nil {
		return nil, err
	}
	sum := domain.Summarize(t, accountID)
	return &sum, nil
}

func (s *TicketService) VisitorTicket(ctx context.Context, ticketID, visitorID, appKey string) (*domain.TicketSummary, error) {
	t, _, err := s.visitorTicket(ctx, ticketID, visitorID, appKey)
	if err != nil {
		return nil, err
	}
	sum := domain.Summarize(t, visitorID)
	return &sum, nil
}

// AccountMessages marks the whole thread seen by the account, then returns
// one page of it.
func (s *TicketService) AccountMessages(ctx context.Context, ticketID, accountID string, p ListParams) (*Page[MessageView], error) {
	ctx, span := tracer.Start(ctx, "TicketService.AccountMessages", trace.WithAttributes(
		attribute.String("ticket_id", ticketID),
	))
	defer span.End()
	_, scope, err := s.accountScope(ctx, ticketID, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.tickets.MarkSeen(ctx, scope, accountID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.messages(ctx, scope, p)
}

// VisitorMessages marks the thread seen by the visitor and cancels a pending
// email follow-up, then returns one page of it.
func (s *TicketService) VisitorMessages(ctx context.Context, ticketID, visitorID, appKey string, p ListParams) (*Page[MessageView], error) {
	ctx, span := tracer.Start(ctx, "TicketService.VisitorMessages", trace.WithAttributes(
		attribute.String("ticket_id", ticketID),
	))
	defer span.End()
	scope, err := visitorScope(ticketID, visitorID, appKey)
	if err != nil {
		return nil, err
	}
	if err := s.tickets.MarkSeen(ctx, scope, visitorID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.tickets.ClearReceivedMail(ctx, scope); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "tickets - visitor messages - clear received mail failed", "ticket_id", ticketID, "err", err)
		return nil, err
	}
	return s.messages(ctx, scope, p)
}

func (s *TicketService) append(ctx context.Context, scope domain.TicketScope, msg domain.Message, viewerID string) (*MessageReceipt, error) {
	t, err := s.tickets.AppendMessage(ctx, scope, msg, true)
	if err != nil {
		s.log.ErrorContext(ctx, "tickets - append message - update failed", "ticket_id", scope.TicketID.Hex(), "err", err)
		return nil, err
	}
	s.log.InfoContext(ctx, "tickets - append message - success", "ticket_id", scope.TicketID.Hex(), "message_id", msg.ID.Hex(), "type", msg.Type)
	return &MessageReceipt{Ticket: domain.Summarize(t, viewerID), Message: msg}, nil
}

func (s *TicketService) list(ctx context.Context, q domain.TicketQuery, p ListParams) (*Page[domain.TicketSummary], error) {
	q.Skip, q.Limit = pageBounds(p)
	q.Search = strings.TrimSpace(p.Search)
	if p.Status != "" {
		status := domain.TicketStatus(strings.ToUpper(p.Status))
		if !status.Valid() {
			return nil, domain.ErrInvalidStatus
		}
		q.Status = status
	}
	data, total, err := s.tickets.List(ctx, q)
	if err != nil {
		s.log.ErrorContext(ctx, "tickets - list - query failed", "app_key", q.AppKey, "err", err)
		return nil, err
	}
	if data == nil {
		data = []domain.TicketSummary{}
	}
	return &Page[domain.TicketSummary]{Data: data, TotalCount: total}, nil
}

func (s *TicketService) messages(ctx context.Context, scope domain.TicketScope, p ListParams) (*Page[MessageView], error) {
	skip, limit := pageBounds(p)
	msgs, total, err := s.tickets.Messages(ctx, scope, domain.MessageQuery{
		Search: strings.TrimSpace(p.Search),
		Skip:   skip,
		Limit:  limit,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "tickets - messages - query failed", "ticket_id", scope.TicketID.Hex(), "err", err)
		return nil, err
	}
	var userIDs []string
	for _, m := range msgs {
		if m.SentBy.Kind == domain.AuthorUser {
			userIDs = append(userIDs, m.SentBy.ID)
		}
	}
	profiles := map[string]domain.Profile{}
	if len(userIDs) > 0 {
		if profiles, err = s.accounts.Profiles(ctx, userIDs); err != nil {
			s.log.ErrorContext(ctx, "tickets - messages - resolve profiles failed", "ticket_id", scope.TicketID.Hex(), "err", err)
			return nil, err
		}
	}
	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, renderMessage(m, profiles))
	}
	return &Page[MessageView]{Data: views, TotalCount: total}, nil
}

func renderMessage(m domain.Message, profiles map[string]domain.Profile) MessageView {
	v := MessageView{
		ID:        m.ID,
		Message:   m.Message,
		Images:    m.Images,
		Type:      m.Type,
		SentBy:    m.SentBy,
		SeenBy:    m.SeenBy,
		IsBot:     m.IsBot,
		CreatedAt: m.CreatedAt,
	}
	if m.SentBy.Kind == domain.AuthorUser {
		if p, ok := profiles[m.SentBy.ID]; ok {
			v.SentBy = p
		}
	}
	return v
}

// uploadAll stores every file and keeps the URLs that succeeded, in input
// order. Only a total failure is an error.
func (s *TicketService) uploadAll(ctx context.Context, files []contracts.File) ([]string, error) {
	results := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadParallel)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			url, err := s.uploader.Upload(gctx, f)
			if err != nil {
				s.log.WarnContext(ctx, "tickets - upload - file failed", "file", f.Name, "err", err)
				return nil
			}
			results[i] = url
			return nil
		})
	}
	_ = g.Wait()
	urls := make([]string, 0, len(results))
	for _, u := range results {
		if u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil, domain.ErrMessageCreationFailed
	}
	return urls, nil
}

// accountScope resolves the tenant an account may act in. An account
// without a tenant key cannot match any ticket.
func (s *TicketService) accountScope(ctx context.Context, ticketID, accountID string) (*domain.Account, domain.TicketScope, error) {
	id, err := parseTicketID(ticketID)
	if err != nil {
		return nil, domain.TicketScope{}, err
	}
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, domain.TicketScope{}, err
	}
	if acc.AssistKey == "" {
		return nil, domain.TicketScope{}, domain.ErrTicketNotFound
	}
	return acc, domain.TicketScope{TicketID: id, AppKey: acc.AssistKey}, nil
}

func (s *TicketService) visitorTicket(ctx context.Context, ticketID, visitorID, appKey string) (*domain.Ticket, domain.TicketScope, error) {
	scope, err := visitorScope(ticketID, visitorID, appKey)
	if err != nil {
		return nil, scope, err
	}
	t, err := s.tickets.Get(ctx, scope)
	if err != nil {
		return nil, scope, err
	}
	return t, scope, nil
}

func visitorScope(ticketID, visitorID, appKey string) (domain.TicketScope, error) {
	id, err := parseTicketID(ticketID)
	if err != nil {
		return domain.TicketScope{}, err
	}
	if visitorID == "" || appKey == "" {
		return domain.TicketScope{}, domain.ErrTicketNotFound
	}
	return domain.TicketScope{TicketID: id, AppKey: appKey, VisitorID: visitorID}, nil
}

func parseTicketID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", domain.ErrInvalidTicketID, id)
	}
	return oid, nil
}

func pageBounds(p ListParams) (skip, limit int64) {
	skip, limit = p.Skip, p.Limit
	if skip < 0 {
		skip = 0
	}
	switch {
	case limit <= 0:
		limit = defaultPageLimit
	case limit > maxPageLimit:
		limit = maxPageLimit
	}
	return skip, limit
}
