package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/hotspot-billing/internal/application/ports"
	"github.com/jhoicas/hotspot-billing/internal/domain/settlement"
	"github.com/jhoicas/hotspot-billing/pkg/logger"
)

var _ ports.SettlementQueue = (*RedisQueue)(nil)

// Mueve a la lista de pendientes los reintentos cuyo momento ya llegó.
const promoteScript = `
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
for _, v in ipairs(due) do
  redis.call("ZREM", KEYS[1], v)
  redis.call("LPUSH", KEYS[2], v)
end
return #due
`

const (
	promoteBatch = 100
	blockTimeout = time.Second
)

// Keys llaves Redis usadas por la cola.
type Keys struct {
	Jobs       string // LIST: listos para entregar (LPUSH / BLMOVE RIGHT)
	Processing string // LIST: entregados sin confirmar
	Delayed    string // ZSET: reintentos, score = unix ms de visibilidad
	Dead       string // LIST: dead-letter
}

// NewKeys deriva las llaves desde prefix.
func NewKeys(prefix string) Keys {
	base := prefix + "settlement:"
	return Keys{
		Jobs:       base + "jobs",
		Processing: base + "processing",
		Delayed:    base + "delayed",
		Dead:       base + "dead",
	}
}

// RedisQueue cola durable sobre listas Redis. Un evento entregado queda en Processing hasta
// Ack, Retry o DeadLetter; Recover lo devuelve a Jobs tras una caída.
type RedisQueue struct {
	client  *redis.Client
	keys    Keys
	promote *redis.Script
	log     *logger.Logger
}

// NewRedisQueue construye la cola.
func NewRedisQueue(client *redis.Client, prefix string, log *logger.Logger) *RedisQueue {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisQueue{
		client:  client,
		keys:    NewKeys(prefix),
		promote: redis.NewScript(promoteScript),
		log:     log.Component("settlement_queue"),
	}
}

// Recover devuelve a Jobs los eventos que quedaron en Processing. Llamar al arrancar,
// antes de iniciar el worker.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, q.keys.Processing, q.keys.Jobs, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("recover processing: %w", err)
		}
		n++
	}
	if n > 0 {
		q.log.Warn().Int("count", n).Msg("eventos sin confirmar devueltos a la cola")
	}
	return n, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, job settlement.Job) error {
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.keys.Jobs, payload).Err(); err != nil {
		return fmt.Errorf("enqueue settlement job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*ports.Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now := strconv.FormatInt(time.Now().UnixMilli(), 10)
		if err := q.promote.Run(ctx, q.client, []string{q.keys.Delayed, q.keys.Jobs}, now, promoteBatch).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("promote delayed jobs: %w", err)
		}

		payload, err := q.client.BLMove(ctx, q.keys.Jobs, q.keys.Processing, "RIGHT", "LEFT", blockTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("dequeue settlement job: %w", err)
		}

		job, err := decodeJob(payload)
		if err != nil {
			// payload ilegible: apartarlo para que no bloquee la cola
			q.log.Error().Err(err).Msg("evento ilegible en la cola, movido a dead-letter")
			q.moveDead(ctx, payload, payload, "decode: "+err.Error())
			continue
		}
		return &ports.Delivery{Job: job, Token: payload}, nil
	}
}

func (q *RedisQueue) Ack(ctx context.Context, d *ports.Delivery) error {
	if err := q.client.LRem(ctx, q.keys.Processing, 1, d.Token).Err(); err != nil {
		return fmt.Errorf("ack settlement job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Retry(ctx context.Context, d *ports.Delivery, delay time.Duration) error {
	job := d.Job
	job.Attempt++
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}
	visibleAt := float64(time.Now().Add(delay).UnixMilli())
	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.keys.Processing, 1, d.Token)
		p.ZAdd(ctx, q.keys.Delayed, redis.Z{Score: visibleAt, Member: payload})
		return nil
	})
	if err != nil {
		return fmt.Errorf("retry settlement job: %w", err)
	}
	return nil
}

func (q *RedisQueue) DeadLetter(ctx context.Context, d *ports.Delivery, reason string) error {
	entry, err := json.Marshal(DeadLetter{Job: d.Job, Reason: reason, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}
	return q.moveDead(ctx, d.Token, string(entry), reason)
}

// DeadLetters lee hasta limit eventos apartados, más recientes primero.
func (q *RedisQueue) DeadLetters(ctx context.Context, limit int64) ([]DeadLetter, error) {
	raw, err := q.client.LRange(ctx, q.keys.Dead, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	out := make([]DeadLetter, 0, len(raw))
	for _, r := range raw {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(r), &dl); err != nil {
			dl = DeadLetter{Reason: "ilegible: " + r}
		}
		out = append(out, dl)
	}
	return out, nil
}

func (q *RedisQueue) moveDead(ctx context.Context, token, entry, reason string) error {
	_, err := q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.keys.Processing, 1, token)
		p.LPush(ctx, q.keys.Dead, entry)
		return nil
	})
	if err != nil {
		q.log.Error().Err(err).Str("reason", reason).Msg("mover evento a dead-letter")
		return fmt.Errorf("dead-letter settlement job: %w", err)
	}
	return nil
}

func encodeJob(job settlement.Job) (string, error) {
	b, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode settlement job: %w", err)
	}
	return string(b), nil
}

func decodeJob(payload string) (settlement.Job, error) {
	var job settlement.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return settlement.Job{}, err
	}
	return job, nil
}
