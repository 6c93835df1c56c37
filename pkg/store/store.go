package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/anshulg954/TabAdjust/pkg/timeseries"
)

// PanelStore caches a preprocessed panel between runs so repeated backtests
// over the same dataset skip re-preprocessing. The backtest engine itself
// stays stateless; this is an optional shortcut in front of it.
type PanelStore interface {
	// Save replaces the cached panel.
	Save(ctx context.Context, panel timeseries.Panel) error

	// Load retrieves the cached records with timestamps in [start, end].
	Load(ctx context.Context, start, end time.Time) (timeseries.Panel, error)

	// LoadAll retrieves the whole cached panel.
	LoadAll(ctx context.Context) (timeseries.Panel, error)

	Close() error
}

// LocalPanelStore keeps the panel in a single JSON file.
type LocalPanelStore struct {
	path string
}

func NewLocalPanelStore(dataDir string) (*LocalPanelStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &LocalPanelStore{path: filepath.Join(dataDir, "panel.json")}, nil
}

func (s *LocalPanelStore) Save(ctx context.Context, panel timeseries.Panel) error {
	data, err := json.Marshal(panel)
	if err != nil {
		return fmt.Errorf("failed to marshal panel: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write panel cache: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *LocalPanelStore) LoadAll(ctx context.Context) (timeseries.Panel, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read panel cache: %w", err)
	}
	var panel timeseries.Panel
	if err := json.Unmarshal(data, &panel); err != nil {
		return nil, fmt.Errorf("failed to decode panel cache: %w", err)
	}
	return panel, nil
}

func (s *LocalPanelStore) Load(ctx context.Context, start, end time.Time) (timeseries.Panel, error) {
	panel, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return panel.Window(start, end), nil
}

func (s *LocalPanelStore) Close() error { return nil }
