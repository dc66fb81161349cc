package services

import (
	"context"
	"log/slog"

	"assist/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TenantService owns the account -> widget key link and the widget settings.
type TenantService struct {
	accounts domain.AccountRepository
	settings domain.SettingsRepository
	clock    clockwork.Clock
	log      *slog.Logger
}

func NewTenantService(
	log *slog.Logger,
	accounts domain.AccountRepository,
	settings domain.SettingsRepository,
	clk clockwork.Clock,
) *TenantService {
	return &TenantService{
		log:      log,
		accounts: accounts,
		settings: settings,
		clock:    clk,
	}
}

// GenerateKey creates the account's widget key together with default
// settings. An account gets at most one key.
func (s *TenantService) GenerateKey(ctx context.Context, accountID string) (string, error) {
	ctx, span := tracer.Start(ctx, "TenantService.GenerateKey", trace.WithAttributes(
		attribute.String("account_id", accountID),
	))
	defer span.End()
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if acc.AssistKey != "" {
		return "", domain.ErrKeyAlreadyExists
	}
	key := uuid.NewString()
	if err := s.accounts.SetAssistKey(ctx, accountID, key); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "tenant - generate key - set key failed", "account_id", accountID, "err", err)
		return "", err
	}
	if _, err := s.settings.Ensure(ctx, domain.DefaultSettings(key, s.clock.Now())); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "tenant - generate key - default settings failed", "account_id", accountID, "err", err)
		return "", err
	}
	s.log.InfoContext(ctx, "tenant - generate key - success", "account_id", accountID, "app_key", key)
	return key, nil
}

// Settings returns the account's widget settings, creating defaults for
// tenants provisioned before settings existed.
func (s *TenantService) Settings(ctx context.Context, accountID string) (*domain.Settings, error) {
	key, err := s.AccountKey(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.settings.Ensure(ctx, domain.DefaultSettings(key, s.clock.Now()))
}

func (s *TenantService) UpdateSettings(ctx context.Context, accountID string, patch domain.SettingsPatch) (*domain.Settings, error) {
	ctx, span := tracer.Start(ctx, "TenantService.UpdateSettings", trace.WithAttributes(
		attribute.String("account_id", accountID),
	))
	defer span.End()
	key, err := s.AccountKey(ctx, accountID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if _, err := s.settings.Ensure(ctx, domain.DefaultSettings(key, now)); err != nil {
		span.RecordError(err)
		return nil, err
	}
	updated, err := s.settings.Update(ctx, key, patch, now)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "tenant - update settings - update failed", "app_key", key, "err", err)
		return nil, err
	}
	return updated, nil
}

// WidgetSettings is the public read used by the embedded widget.
func (s *TenantService) WidgetSettings(ctx context.Context, appKey string) (*domain.Settings, error) {
	if err := s.CheckKey(ctx, appKey); err != nil {
		return nil, err
	}
	return s.settings.Ensure(ctx, domain.DefaultSettings(appKey, s.clock.Now()))
}

// CheckKey reports ErrTenantNotFound unless an account owns appKey.
func (s *TenantService) CheckKey(ctx context.Context, appKey string) error {
	_, err := s.accounts.GetByAssistKey(ctx, appKey)
	return err
}

// AccountKey returns the widget key of accountID, which is also the channel
// its sockets join.
func (s *TenantService) AccountKey(ctx context.Context, accountID string) (string, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if acc.AssistKey == "" {
		return "", domain.ErrTenantNotFound
	}
	return acc.AssistKey, nil
}
