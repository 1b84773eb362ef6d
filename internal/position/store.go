// Package position persists PositionState and serializes read-evaluate-write cycles.
package position

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"CrashSentinel/internal/model"
)

// Store loads and saves the single PositionState record.
type Store interface {
	Load(ctx context.Context) (model.PositionState, error)
	Save(ctx context.Context, st model.PositionState) error
}

// FileStore keeps the state as an indented JSON file.
type FileStore struct {
	Path string
}

// NewFileStore creates a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the state. Returns the initial HOLDING state if the file doesn't exist.
func (f *FileStore) Load(_ context.Context) (model.PositionState, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.NewPositionState(), nil
		}
		return model.PositionState{}, fmt.Errorf("read state: %w", err)
	}
	return decodeState(data)
}

// Save writes through a temp file and rename so a crash never leaves a torn file.
func (f *FileStore) Save(_ context.Context, st model.PositionState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return os.Rename(tmp, f.Path)
}

func decodeState(data []byte) (model.PositionState, error) {
	var st model.PositionState
	if err := json.Unmarshal(data, &st); err != nil {
		return model.PositionState{}, fmt.Errorf("decode state: %w", err)
	}
	if st.Position == "" {
		st.Position = model.PositionHolding
	}
	return st, nil
}
