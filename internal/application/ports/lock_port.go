package ports

import (
	"context"
	"time"
)

// OrderLocker exclusión mutua corta por orden entre instancias del worker.
type OrderLocker interface {
	// TryLock devuelve (token, true) si obtuvo el lock.
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}
