package ports

import (
	"context"
	"errors"

	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
)

// ErrCacheMiss is returned by CacheService.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishQueryEvent(ctx context.Context, event *domain.QueryEvent) error
}

// CacheService provides read-through caching. Implementations are expected to
// be safe for concurrent use by in-flight requests.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
