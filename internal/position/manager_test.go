package position

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CrashSentinel/internal/model"
)

type memStore struct {
	mu      sync.Mutex
	st      model.PositionState
	saves   int
	saveErr error
}

func (m *memStore) Load(context.Context) (model.PositionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st.Position == "" {
		return model.NewPositionState(), nil
	}
	return m.st.Clone(), nil
}

func (m *memStore) Save(_ context.Context, st model.PositionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.st = st.Clone()
	return nil
}

func TestManagerApplyPersists(t *testing.T) {
	store := &memStore{}
	m, err := NewManager(context.Background(), store)
	require.NoError(t, err)

	fixed := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	next, err := m.Apply(context.Background(), func(st model.PositionState) (model.PositionState, error) {
		st.Position = model.PositionSold
		st.SellOrigin = model.SellOriginThreshold
		return st, nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.PositionSold, next.Position)
	assert.Equal(t, fixed, next.UpdatedAt)
	assert.Equal(t, model.PositionSold, m.State().Position)
	assert.Equal(t, model.PositionSold, store.st.Position)
	assert.Equal(t, 1, store.saves)
}

func TestManagerApplyErrorLeavesStateUnchanged(t *testing.T) {
	store := &memStore{}
	m, err := NewManager(context.Background(), store)
	require.NoError(t, err)

	boom := errors.New("malformed")
	got, err := m.Apply(context.Background(), func(st model.PositionState) (model.PositionState, error) {
		st.Position = model.PositionSold
		return st, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, model.PositionHolding, got.Position)
	assert.Equal(t, model.PositionHolding, m.State().Position)
	assert.Zero(t, store.saves)
}

func TestManagerSaveFailureKeepsMemory(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	m, err := NewManager(context.Background(), store)
	require.NoError(t, err)

	_, err = m.Apply(context.Background(), func(st model.PositionState) (model.PositionState, error) {
		st.Position = model.PositionSold
		return st, nil
	})
	assert.Error(t, err)
	assert.Equal(t, model.PositionHolding, m.State().Position)
}

func TestManagerStateIsACopy(t *testing.T) {
	store := &memStore{st: model.PositionState{Position: model.PositionSold, CreditWindow: []float64{0.3}}}
	m, err := NewManager(context.Background(), store)
	require.NoError(t, err)

	st := m.State()
	st.CreditWindow[0] = 0.9
	assert.Equal(t, 0.3, m.State().CreditWindow[0])
}

func TestManagerSerializesApply(t *testing.T) {
	m, err := NewManager(context.Background(), &memStore{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Apply(context.Background(), func(st model.PositionState) (model.PositionState, error) {
				st.CreditWindow = append(st.CreditWindow, 1)
				return st, nil
			})
		}()
	}
	wg.Wait()
	assert.Len(t, m.State().CreditWindow, 50)
}

func TestManagerReset(t *testing.T) {
	store := &memStore{st: model.PositionState{Position: model.PositionSold, SellOrigin: model.SellOriginThreshold}}
	m, err := NewManager(context.Background(), store)
	require.NoError(t, err)
	require.NoError(t, m.Reset(context.Background()))
	assert.Equal(t, model.PositionHolding, m.State().Position)
	assert.Equal(t, model.SellOriginNone, store.st.SellOrigin)
}
