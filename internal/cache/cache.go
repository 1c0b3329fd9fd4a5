package cache

import (
	"context"
	"time"

	"tallerpos/backend/internal/domain"
)

// SettingsCache keeps the exchange-rate settings document close to the
// checkout path so rate lookups do not hit the store on every conversion.
type SettingsCache interface {
	Get(ctx context.Context, key string) (*domain.Settings, bool, error)
	Set(ctx context.Context, key string, value *domain.Settings, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopSettingsCache struct{}

func (NoopSettingsCache) Get(_ context.Context, _ string) (*domain.Settings, bool, error) {
	return nil, false, nil
}

func (NoopSettingsCache) Set(_ context.Context, _ string, _ *domain.Settings, _ time.Duration) error {
	return nil
}

func (NoopSettingsCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
