package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/hotspot-billing/internal/application/ports"
	domsettlement "github.com/jhoicas/hotspot-billing/internal/domain/settlement"
	"github.com/jhoicas/hotspot-billing/pkg/logger"
)

// maxRetryDelay tope del backoff exponencial.
const maxRetryDelay = 5 * time.Minute

// JobProcessor lo implementa *Processor.
type JobProcessor interface {
	Process(ctx context.Context, job domsettlement.Job) (Result, error)
}

// WorkerConfig reintentos del worker.
type WorkerConfig struct {
	MaxAttempts    int
	RetryBaseDelay time.Duration
	IdleBackoff    time.Duration // espera tras un error de la cola
}

// Worker consumidor único: saca un Job a la vez y lo liquida.
type Worker struct {
	queue     ports.SettlementQueue
	processor JobProcessor
	cfg       WorkerConfig
	log       *logger.Logger
	metrics   ports.SettlementMetrics
}

// NewWorker construye el worker.
func NewWorker(queue ports.SettlementQueue, processor JobProcessor, cfg WorkerConfig, log *logger.Logger, metrics ports.SettlementMetrics) *Worker {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 2 * time.Second
	}
	if cfg.IdleBackoff <= 0 {
		cfg.IdleBackoff = time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Worker{queue: queue, processor: processor, cfg: cfg, log: log.Component("settlement_worker"), metrics: metrics}
}

// Run consume hasta que ctx termine. Un Job que falla o entra en pánico no detiene el loop.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Int("max_attempts", w.cfg.MaxAttempts).Msg("worker de liquidación iniciado")
	for {
		d, err := w.queue.Dequeue(ctx)
		if ctx.Err() != nil {
			w.log.Info().Msg("worker de liquidación detenido")
			return nil
		}
		if err != nil {
			w.log.Error().Err(err).Msg("leer cola de liquidación")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.cfg.IdleBackoff):
			}
			continue
		}
		if d == nil {
			continue
		}
		// el Job en curso termina aunque se pida apagado
		w.Handle(context.WithoutCancel(ctx), d)
	}
}

// Handle procesa una entrega y decide Ack, Retry o DeadLetter.
func (w *Worker) Handle(ctx context.Context, d *ports.Delivery) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			w.log.Error().
				Str("checkout_id", d.Job.CheckoutID).
				Str("panic", fmt.Sprint(r)).
				Msg("pánico procesando evento de liquidación")
			w.deadLetter(ctx, d, "panic", fmt.Sprint(r))
			w.metrics.JobProcessed("unknown", "panic", time.Since(start))
		}
	}()

	res, err := w.processor.Process(ctx, d.Job)
	kind := string(res.Kind)
	if kind == "" {
		kind = "unknown"
	}
	w.metrics.JobProcessed(kind, string(res.Outcome), time.Since(start))

	if err == nil {
		if ackErr := w.queue.Ack(ctx, d); ackErr != nil {
			w.log.Warn().Err(ackErr).Str("checkout_id", d.Job.CheckoutID).Msg("ack de evento")
		}
		return
	}

	reason := "store"
	if errors.Is(err, ErrOrderBusy) {
		reason = "busy"
	}
	if !IsRetryable(err) {
		w.log.Error().Err(err).Str("checkout_id", d.Job.CheckoutID).Msg("error no reintentable")
		w.deadLetter(ctx, d, "fatal", err.Error())
		return
	}
	if d.Job.Attempt+1 >= w.cfg.MaxAttempts {
		w.log.Error().Err(err).
			Str("checkout_id", d.Job.CheckoutID).
			Int("attempts", d.Job.Attempt+1).
			Msg("reintentos agotados, evento a dead-letter")
		w.deadLetter(ctx, d, "max_attempts", err.Error())
		return
	}
	delay := w.RetryDelay(d.Job.Attempt)
	w.log.Warn().Err(err).
		Str("checkout_id", d.Job.CheckoutID).
		Int("attempt", d.Job.Attempt+1).
		Dur("delay", delay).
		Msg("reencolando evento de liquidación")
	if rErr := w.queue.Retry(ctx, d, delay); rErr != nil {
		w.log.Error().Err(rErr).Str("checkout_id", d.Job.CheckoutID).Msg("reencolar evento")
		return
	}
	w.metrics.JobRetried(reason)
}

// RetryDelay base * 2^attempt, con tope.
func (w *Worker) RetryDelay(attempt int) time.Duration {
	delay := w.cfg.RetryBaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

func (w *Worker) deadLetter(ctx context.Context, d *ports.Delivery, reason, detail string) {
	if err := w.queue.DeadLetter(ctx, d, reason+": "+detail); err != nil {
		w.log.Error().Err(err).Str("checkout_id", d.Job.CheckoutID).Msg("mover evento a dead-letter")
		return
	}
	w.metrics.JobDeadLettered(reason)
}
