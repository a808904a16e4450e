package queue

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/hotspot-billing/internal/application/ports"
	"github.com/jhoicas/hotspot-billing/internal/domain"
	"github.com/jhoicas/hotspot-billing/internal/domain/settlement"
)

var _ ports.SettlementQueue = (*MemoryQueue)(nil)

// DeadLetter Job apartado para conciliación manual.
type DeadLetter struct {
	Job    settlement.Job `json:"job"`
	Reason string         `json:"reason"`
	At     time.Time      `json:"at"`
}

// MemoryQueue cola FIFO en proceso. Los eventos no sobreviven a un reinicio.
type MemoryQueue struct {
	mu     sync.Mutex
	ready  []settlement.Job
	dead   []DeadLetter
	notify chan struct{}
	timers map[*time.Timer]struct{}
	closed bool
}

// NewMemoryQueue construye una cola vacía.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		notify: make(chan struct{}, 1),
		timers: make(map[*time.Timer]struct{}),
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job settlement.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return domain.ErrQueueClosed
	}
	q.push(job)
	return nil
}

// push requiere q.mu tomado.
func (q *MemoryQueue) push(job settlement.Job) {
	q.ready = append(q.ready, job)
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*ports.Delivery, error) {
	for {
		q.mu.Lock()
		if len(q.ready) > 0 {
			job := q.ready[0]
			q.ready = q.ready[1:]
			if len(q.ready) > 0 && !q.closed {
				select {
				case q.notify <- struct{}{}:
				default:
				}
			}
			q.mu.Unlock()
			return &ports.Delivery{Job: job, Token: job.ID}, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, domain.ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

// Ack no hace nada: una entrega en memoria ya salió de la cola.
func (q *MemoryQueue) Ack(context.Context, *ports.Delivery) error { return nil }

func (q *MemoryQueue) Retry(_ context.Context, d *ports.Delivery, delay time.Duration) error {
	job := d.Job
	job.Attempt++

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return domain.ErrQueueClosed
	}
	if delay <= 0 {
		q.push(job)
		return nil
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.timers, t)
		if !q.closed {
			q.push(job)
		}
	})
	q.timers[t] = struct{}{}
	return nil
}

func (q *MemoryQueue) DeadLetter(_ context.Context, d *ports.Delivery, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, DeadLetter{Job: d.Job, Reason: reason, At: time.Now().UTC()})
	return nil
}

// DeadLetters copia de los eventos apartados.
func (q *MemoryQueue) DeadLetters() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DeadLetter, len(q.dead))
	copy(out, q.dead)
	return out
}

// Len eventos listos para entregar.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready)
}

// Close rechaza nuevos eventos y cancela los reintentos programados. Dequeue devuelve
// ErrQueueClosed una vez vaciada la cola.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for t := range q.timers {
		t.Stop()
	}
	q.timers = nil
	close(q.notify)
}
