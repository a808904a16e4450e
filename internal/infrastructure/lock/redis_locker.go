package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/hotspot-billing/internal/application/ports"
)

// Solo borra la llave si el token sigue siendo el nuestro.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var _ ports.OrderLocker = (*RedisLocker)(nil)

// RedisLocker lock por orden con SET NX PX; compartido por todas las instancias del worker.
type RedisLocker struct {
	client *redis.Client
	prefix string
	script *redis.Script
}

// NewRedisLocker construye el locker. prefix se antepone a cada llave.
func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix, script: redis.NewScript(releaseScript)}
}

// TryLock intenta tomar key por ttl. ok=false si otra instancia lo tiene.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock: cliente redis no configurado")
	}
	if key == "" {
		return "", false, errors.New("lock: llave vacía")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock: ttl debe ser positivo")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release libera key si token coincide; un lock ya vencido no es error.
func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{l.prefix + key}, token).Err()
}
