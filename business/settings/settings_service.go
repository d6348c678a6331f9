package settings

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"feedbacker/domain"
	"feedbacker/pkg/config"
	"feedbacker/pkg/logger"
)

// SettingsRepository contract interface
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type cached struct {
	value   string
	ok      bool
	expires time.Time
}

// settingsService fronts the settings table with a small TTL read
// cache, so hot keys like the alert threshold do not hit the database
// on every submission.
type settingsService struct {
	repo             SettingsRepository
	ttl              time.Duration
	defaultThreshold float64

	mu    sync.Mutex
	cache map[string]cached

	now func() time.Time
}

func NewSettingsService(repo SettingsRepository, cfg config.SettingsConfig, defaultThreshold float64) *settingsService {
	return &settingsService{
		repo:             repo,
		ttl:              time.Duration(cfg.CacheTTLSec) * time.Second,
		defaultThreshold: defaultThreshold,
		cache:            make(map[string]cached),
		now:              time.Now,
	}
}

// Get returns the stored value for key. A missing key is reported as
// domain.ErrNotFound; absence is cached like any other answer.
func (s *settingsService) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	if c, ok := s.cache[key]; ok && s.now().Before(c.expires) {
		s.mu.Unlock()
		if !c.ok {
			return "", domain.ErrNotFound
		}

		return c.value, nil
	}
	s.mu.Unlock()

	value, err := s.repo.Get(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	s.store(key, value, err == nil)
	if err != nil {
		return "", domain.ErrNotFound
	}

	return value, nil
}

// Set writes through to the repository and refreshes the cache, so a
// read right after a write observes the new value.
func (s *settingsService) Set(ctx context.Context, key, value string) error {
	if err := s.repo.Set(ctx, key, value); err != nil {
		logger.Error("failed to save setting", "key", key, err)
		return err
	}

	s.store(key, value, true)

	return nil
}

// AlertThreshold returns the configured notification threshold, falling
// back to the deployment default when the setting is absent or
// malformed. Decimal commas are accepted.
func (s *settingsService) AlertThreshold(ctx context.Context) float64 {
	raw, err := s.Get(ctx, domain.SettingAlertThreshold)
	if err != nil {
		return s.defaultThreshold
	}

	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		logger.Warn("alert threshold setting is not a number, using default",
			"value", raw, "default", s.defaultThreshold)
		return s.defaultThreshold
	}

	return v
}

func (s *settingsService) store(key, value string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[key] = cached{value: value, ok: ok, expires: s.now().Add(s.ttl)}
}
