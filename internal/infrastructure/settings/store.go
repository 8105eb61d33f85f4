package settings

import (
	"context"

	"balance_pool/internal/app/port"
	"balance_pool/internal/domain/entity"
	"balance_pool/internal/pkg/observable"
)

// Store keeps the user settings in memory, seeded from config.
type Store struct {
	logger   port.Logger
	settings *observable.Subject[entity.Settings]
}

// NewStore creates a new Store holding initial.
func NewStore(initial entity.Settings, logger port.Logger) *Store {
	return &Store{
		logger:   logger,
		settings: observable.NewWithValue(initial),
	}
}

// WatchSettings implements port.SettingsStore.
func (s *Store) WatchSettings(ctx context.Context) <-chan entity.Settings {
	return s.settings.Watch(ctx)
}

// Settings returns the current settings.
func (s *Store) Settings() entity.Settings {
	v, _ := s.settings.Get()
	return v
}

// Set replaces the settings. Watchers are notified only when something changed.
func (s *Store) Set(v entity.Settings) {
	if current, ok := s.settings.Get(); ok && current == v {
		return
	}
	s.settings.Set(v)
	s.logger.Info("Settings updated", "include_testnets", v.IncludeTestnets)
}
