package ports

import (
	"context"
	"time"

	"github.com/jhoicas/hotspot-billing/internal/domain/settlement"
)

// Delivery un Job entregado por la cola junto con el token para confirmarlo.
type Delivery struct {
	Job   settlement.Job
	Token string
}

// SettlementQueue canal de entrega al-menos-una-vez entre la ingesta de callbacks y el worker.
// Un Job entregado y no confirmado (Ack/Retry/DeadLetter) puede volver a entregarse.
type SettlementQueue interface {
	Enqueue(ctx context.Context, job settlement.Job) error
	// Dequeue bloquea hasta que haya un Job o ctx termine.
	Dequeue(ctx context.Context) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	// Retry reencola el Job (con Attempt incrementado) visible tras delay.
	Retry(ctx context.Context, d *Delivery, delay time.Duration) error
	// DeadLetter aparta el Job para conciliación manual.
	DeadLetter(ctx context.Context, d *Delivery, reason string) error
}
