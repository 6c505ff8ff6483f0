package service

import (
	"context"
	"errors"
	"strings"

	"pulseprint/internal/repository"
)

// ErrEmptyPrefKey rejects blank preference keys before they hit storage.
var ErrEmptyPrefKey = errors.New("preference key must not be empty")

type PreferencesService struct {
	prefs repository.PrefsRepo
}

func NewPreferencesService(prefs repository.PrefsRepo) *PreferencesService {
	return &PreferencesService{prefs: prefs}
}

func (s *PreferencesService) Set(ctx context.Context, key, value string) error {
	if key = strings.TrimSpace(key); key == "" {
		return ErrEmptyPrefKey
	}
	return s.prefs.Set(ctx, key, value)
}

func (s *PreferencesService) Get(ctx context.Context, key string) (string, error) {
	if key = strings.TrimSpace(key); key == "" {
		return "", ErrEmptyPrefKey
	}
	return s.prefs.Get(ctx, key)
}

func (s *PreferencesService) All(ctx context.Context) (map[string]string, error) {
	return s.prefs.All(ctx)
}
