package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nandanugg/marah/module/geofence/domain"
	"github.com/nandanugg/marah/module/geofence/internal/repository/database"
)

const SettingsKey = "marah_app_settings"

var ErrInvalidSettings = errors.New("invalid settings")

type SettingsService struct {
	mu       sync.RWMutex
	store    database.KeyValueStore
	policy   *AlertPolicy
	settings domain.AppSettings
	// other keeps fields of the stored blob this service does not own.
	other map[string]json.RawMessage
}

func NewSettingsService(store database.KeyValueStore, policy *AlertPolicy) *SettingsService {
	cfg := policy.Config()
	return &SettingsService{
		store:  store,
		policy: policy,
		settings: domain.AppSettings{
			SoundEffects:    true,
			NightMode:       cfg.NightMode,
			AntiSpamMinutes: int(cfg.AntiSpam / time.Minute),
		},
	}
}

// Load reads stored settings and applies them to the policy. Missing or
// malformed settings keep the defaults.
func (s *SettingsService) Load(ctx context.Context) error {
	raw, err := s.store.Load(ctx, SettingsKey)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var other map[string]json.RawMessage
	if err := json.Unmarshal(raw, &other); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	loaded := s.settings
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	if err := validateSettings(loaded); err != nil {
		return err
	}
	s.settings = loaded
	s.other = other
	s.applyLocked()
	return nil
}

func (s *SettingsService) Get() domain.AppSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *SettingsService) SoundEnabled() bool {
	return s.Get().SoundEffects
}

// Update applies settings to the policy at once, then saves them. A failed
// save is reported but the new settings stay in effect.
func (s *SettingsService) Update(ctx context.Context, next domain.AppSettings) (domain.AppSettings, error) {
	if err := validateSettings(next); err != nil {
		return s.Get(), err
	}

	s.mu.Lock()
	s.settings = next
	s.applyLocked()
	blob, err := s.encodeLocked()
	s.mu.Unlock()
	if err != nil {
		return next, err
	}

	if err := s.store.Save(ctx, SettingsKey, blob); err != nil {
		return next, fmt.Errorf("save settings: %w", err)
	}
	return next, nil
}

func (s *SettingsService) applyLocked() {
	cfg := s.policy.Config()
	cfg.NightMode = s.settings.NightMode
	cfg.AntiSpam = time.Duration(s.settings.AntiSpamMinutes) * time.Minute
	s.policy.SetConfig(cfg)
}

func (s *SettingsService) encodeLocked() ([]byte, error) {
	merged := make(map[string]json.RawMessage, len(s.other)+3)
	for k, v := range s.other {
		merged[k] = v
	}
	own, err := json.Marshal(s.settings)
	if err != nil {
		return nil, err
	}
	var ownFields map[string]json.RawMessage
	if err := json.Unmarshal(own, &ownFields); err != nil {
		return nil, err
	}
	for k, v := range ownFields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

func validateSettings(s domain.AppSettings) error {
	if s.AntiSpamMinutes < 0 {
		return fmt.Errorf("%w: antiSpamMinutes must not be negative", ErrInvalidSettings)
	}
	if s.NightMode.Enabled {
		if _, ok := ParseClock(s.NightMode.Start); !ok {
			return fmt.Errorf("%w: nightMode.start must be HH:MM", ErrInvalidSettings)
		}
		if _, ok := ParseClock(s.NightMode.End); !ok {
			return fmt.Errorf("%w: nightMode.end must be HH:MM", ErrInvalidSettings)
		}
	}
	return nil
}
