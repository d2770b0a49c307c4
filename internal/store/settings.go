package store

import (
	"context"

	"lessonbook/backend/internal/domain"
)

// Unsubscribe stops a subscription's deliveries.
type Unsubscribe func()

// SettingsStore persists the settings aggregate as one document with
// replace semantics; Save never patches individual fields. Subscribe
// delivers the full current document immediately and again after every
// successful write, from a single goroutine per subscription.
type SettingsStore interface {
	Load(ctx context.Context) (domain.AppConfig, error)
	Save(ctx context.Context, cfg domain.AppConfig) error
	Subscribe(ctx context.Context, deliver func(domain.AppConfig)) (Unsubscribe, error)
}
