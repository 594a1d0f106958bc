package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/sixty60/internal/domain"
	"github.com/utafrali/sixty60/pkg/logger"
)

type deviceState struct {
	DeviceID string    `json:"deviceId"`
	SavedAt  time.Time `json:"savedAt"`
}

// Manager reads and writes the session documents on top of a Store.
type Manager struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewManager creates a manager over store.
func NewManager(store Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// LoadState returns the saved auth state. found is false when nothing has
// been saved yet.
func (m *Manager) LoadState(ctx context.Context) (state domain.StoredState, found bool, err error) {
	found, err = m.store.Load(ctx, KeyAuth, &state)
	if err != nil {
		return domain.StoredState{}, false, fmt.Errorf("load auth state: %w", err)
	}
	return state, found, nil
}

// SaveState replaces the saved auth state, stamping SavedAt.
func (m *Manager) SaveState(ctx context.Context, state domain.StoredState) error {
	state.SavedAt = m.now().UTC()
	if err := m.store.Save(ctx, KeyAuth, state); err != nil {
		return fmt.Errorf("save auth state: %w", err)
	}

	logger.WithContext(ctx, m.logger).Debug("auth state saved",
		logger.Masked("phone", state.PhoneE164),
		slog.Bool("complete", state.IsComplete()),
	)
	return nil
}

// SavePending overlays the pending OTP fields on whatever state is saved, so
// a profile from an earlier login survives a new OTP request.
func (m *Manager) SavePending(ctx context.Context, pending domain.PendingAuth) error {
	state, _, err := m.LoadState(ctx)
	if err != nil {
		return err
	}
	return m.SaveState(ctx, state.WithPending(pending))
}

// DeviceID returns the persisted device id, generating and saving a random
// UUID on first use.
func (m *Manager) DeviceID(ctx context.Context) (string, error) {
	var device deviceState
	found, err := m.store.Load(ctx, KeyDevice, &device)
	if err != nil {
		return "", fmt.Errorf("load device id: %w", err)
	}
	if found && device.DeviceID != "" {
		return device.DeviceID, nil
	}

	device = deviceState{DeviceID: m.newID(), SavedAt: m.now().UTC()}
	if err := m.store.Save(ctx, KeyDevice, device); err != nil {
		return "", fmt.Errorf("save device id: %w", err)
	}

	m.logger.Info("device id created", slog.String("device_id", device.DeviceID))
	return device.DeviceID, nil
}
