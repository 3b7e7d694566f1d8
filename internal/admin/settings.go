package admin

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/docassist/backend/pkg/errs"
	"github.com/docassist/backend/pkg/logger"
)

const (
	keyActiveModel   = "active_model"
	keyCustomContext = "custom_context"
)

// SettingsStore is the key/value persistence behind admin settings.
// Satisfied by *sqlite.Client.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Store holds process-wide administrator configuration. Values are read
// fresh on every call, so a change takes effect on the next query without
// restarts. Writes are last-write-wins.
type Store struct {
	db           SettingsStore
	defaultModel string
}

func NewStore(db SettingsStore, defaultModel string) *Store {
	return &Store{
		db:           db,
		defaultModel: defaultModel,
	}
}

// EnsureDefaults seeds the active model row on first boot so the admin
// surface shows an explicit value. An already stored choice is left alone.
func (s *Store) EnsureDefaults(ctx context.Context) error {
	_, err := s.db.GetSetting(ctx, keyActiveModel)
	if errors.Is(err, errs.ErrNotFound) {
		return s.db.SetSetting(ctx, keyActiveModel, s.defaultModel)
	}
	return err
}

// ActiveModel returns the configured completion model. A missing row is
// normal and resolves to the compiled-in default.
func (s *Store) ActiveModel(ctx context.Context) (string, error) {
	model, err := s.db.GetSetting(ctx, keyActiveModel)
	if errors.Is(err, errs.ErrNotFound) {
		return s.defaultModel, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve active model: %w", err)
	}
	if model == "" {
		return s.defaultModel, nil
	}
	return model, nil
}

func (s *Store) SetActiveModel(ctx context.Context, model string) error {
	if err := s.db.SetSetting(ctx, keyActiveModel, model); err != nil {
		return err
	}

	logger.Info("Active model changed", zap.String("model", model))
	return nil
}

// CustomContext returns the administrator-supplied context text, empty when
// none is set.
func (s *Store) CustomContext(ctx context.Context) (string, error) {
	text, err := s.db.GetSetting(ctx, keyCustomContext)
	if errors.Is(err, errs.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve custom context: %w", err)
	}
	return text, nil
}

func (s *Store) SetCustomContext(ctx context.Context, text string) error {
	if err := s.db.SetSetting(ctx, keyCustomContext, text); err != nil {
		return err
	}

	logger.Info("Custom context updated", zap.Int("length", len(text)))
	return nil
}
