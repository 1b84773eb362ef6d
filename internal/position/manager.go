package position

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"CrashSentinel/internal/model"
)

// Manager owns the in-memory PositionState and is its only writer.
type Manager struct {
	mu    sync.Mutex
	store Store
	state model.PositionState
	now   func() time.Time
}

// NewManager creates a Manager, loading or initializing state from the store.
func NewManager(ctx context.Context, store Store) (*Manager, error) {
	st, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load position state: %w", err)
	}
	return &Manager{store: store, state: st, now: time.Now}, nil
}

// State returns a copy of the current state.
func (m *Manager) State() model.PositionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Apply runs fn on a copy of the state and persists its result. Calls are serialized, so
// concurrent cycles never interleave their read and write. When fn or the save fails the
// stored and in-memory state stay as they were.
func (m *Manager) Apply(ctx context.Context, fn func(model.PositionState) (model.PositionState, error)) (model.PositionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := fn(m.state.Clone())
	if err != nil {
		return m.state.Clone(), err
	}
	next.UpdatedAt = m.now()
	if err := m.store.Save(ctx, next); err != nil {
		log.Error().Err(err).Msg("failed to save position state")
		return m.state.Clone(), fmt.Errorf("save position state: %w", err)
	}
	m.state = next.Clone()
	return next, nil
}

// Reset returns the position to the initial HOLDING state.
func (m *Manager) Reset(ctx context.Context) error {
	_, err := m.Apply(ctx, func(model.PositionState) (model.PositionState, error) {
		return model.NewPositionState(), nil
	})
	return err
}
