// Package settings provides cached access to process-wide key/value settings.
package settings

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// PollChannelKey holds the channel the daily poll is posted to.
const PollChannelKey = "poll_channel_id"

// Backend is the durable setting storage.
type Backend interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Service reads settings through a short-lived cache. Writes go to the backend first
// and only then replace the cached value.
type Service struct {
	backend Backend
	cache   *cache.Cache
}

// NewService creates a settings service. ttl bounds how stale a value can be when another
// process writes the same key.
func NewService(backend Backend, ttl time.Duration) *Service {
	return &Service{backend: backend, cache: cache.New(ttl, 2*ttl)}
}

// Get returns the setting value; ok is false when unset.
func (s *Service) Get(ctx context.Context, key string) (string, bool, error) {
	if v, found := s.cache.Get(key); found {
		return v.(string), true, nil
	}
	value, ok, err := s.backend.GetSetting(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	s.cache.SetDefault(key, value)
	return value, true, nil
}

// Set stores the setting value.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if err := s.backend.SetSetting(ctx, key, value); err != nil {
		s.cache.Delete(key)
		return err
	}
	s.cache.SetDefault(key, value)
	return nil
}
