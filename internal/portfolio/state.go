package portfolio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Entry is what the monitor remembers about one holding between runs.
type Entry struct {
	Signal    SignalType `json:"signal_type"`
	Price     float64    `json:"price"`
	GainPct   float64    `json:"gain_pct"`
	FirstSeen time.Time  `json:"first_seen"`
}

// State maps symbol to its last entry.
type State map[string]Entry

// LoadState reads the holdings state from a JSON file. Returns an empty state if the file doesn't exist.
func LoadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return nil, fmt.Errorf("read portfolio state: %w", err)
	}
	st := State{}
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode portfolio state: %w", err)
	}
	return st, nil
}

// SaveState writes the holdings state through a temp file and rename.
func SaveState(path string, st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create portfolio state dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write portfolio state: %w", err)
	}
	return os.Rename(tmp, path)
}
