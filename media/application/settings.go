package application

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mediakit/picserve/media/domain"
)

var _ domain.SettingStore = (*SettingService)(nil)

// SettingService provides typed access to the settings table with a
// process-local read cache. Writes go through to the repository and evict the
// cached value.
type SettingService struct {
	repo domain.SettingRepository

	mu    sync.RWMutex
	cache map[string]string
}

// NewSettingService creates a SettingService over a setting repository.
func NewSettingService(repo domain.SettingRepository) *SettingService {
	return &SettingService{
		repo:  repo,
		cache: make(map[string]string),
	}
}

// GetString returns the setting value or fallback when the key is absent.
// Read errors are logged and degrade to the fallback rather than failing the
// calling request.
func (s *SettingService) GetString(ctx context.Context, key, fallback string) string {
	s.mu.RLock()
	value, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return value
	}

	value, found, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("setting", key).Msg("Failed to read setting, using fallback")
		return fallback
	}
	if !found {
		return fallback
	}

	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()

	return value
}

func (s *SettingService) GetInt(ctx context.Context, key string, fallback int) int {
	raw := s.GetString(ctx, key, "")
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("setting", key).Str("value", raw).Msg("Setting is not an integer, using fallback")
		return fallback
	}

	return value
}

func (s *SettingService) GetBool(ctx context.Context, key string, fallback bool) bool {
	raw := s.GetString(ctx, key, "")
	if raw == "" {
		return fallback
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn().Str("setting", key).Str("value", raw).Msg("Setting is not a boolean, using fallback")
		return fallback
	}

	return value
}

// Set persists a setting and evicts its cached value.
func (s *SettingService) Set(ctx context.Context, key, value string) error {
	if err := s.repo.SetSetting(ctx, key, value); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	return nil
}

// ClearCache drops all cached settings.
func (s *SettingService) ClearCache() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}
