package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/hotspot-billing/internal/application/ports"
	"github.com/jhoicas/hotspot-billing/internal/clock"
)

var _ ports.OrderLocker = (*MemoryLocker)(nil)

// MemoryLocker lock por orden dentro de un solo proceso (sin Redis).
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]held
	clock clock.Clock
}

type held struct {
	token   string
	expires time.Time
}

// NewMemoryLocker construye el locker en memoria.
func NewMemoryLocker(clk clock.Clock) *MemoryLocker {
	if clk == nil {
		clk = clock.Real{}
	}
	return &MemoryLocker{held: make(map[string]held), clock: clk}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[key] = held{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *MemoryLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.held[key]; ok && h.token == token {
		delete(l.held, key)
	}
	return nil
}
