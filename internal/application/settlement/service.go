package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/hotspot-billing/internal/application/dto"
	"github.com/jhoicas/hotspot-billing/internal/application/ports"
	"github.com/jhoicas/hotspot-billing/internal/clock"
	"github.com/jhoicas/hotspot-billing/internal/domain"
	domsettlement "github.com/jhoicas/hotspot-billing/internal/domain/settlement"
	"github.com/jhoicas/hotspot-billing/pkg/logger"
)

// Service frontera de entrada del motor: ingesta de callbacks y consultas de estado.
type Service struct {
	queue    ports.SettlementQueue
	payments ports.PaymentInitiator
	clock    clock.Clock
	timeout  time.Duration
	log      *logger.Logger
}

// NewService construye el servicio. timeout acota la consulta STK al proveedor.
func NewService(queue ports.SettlementQueue, payments ports.PaymentInitiator, clk clock.Clock, timeout time.Duration, log *logger.Logger) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{queue: queue, payments: payments, clock: clk, timeout: timeout, log: log.Component("settlement_ingest")}
}

// Submit encola un resultado del proveedor para el worker.
func (s *Service) Submit(ctx context.Context, checkoutID string, cb domsettlement.Callback, source string) error {
	checkoutID = strings.TrimSpace(checkoutID)
	if checkoutID == "" {
		return fmt.Errorf("%w: CheckoutRequestID vacío", domain.ErrInvalidInput)
	}
	cb.CheckoutRequestID = checkoutID
	job := domsettlement.Job{
		ID:         uuid.New().String(),
		CheckoutID: checkoutID,
		Callback:   cb,
		Source:     source,
		ReceivedAt: s.clock.Now(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("encolar evento de liquidación: %w", err)
	}
	s.log.Info().
		Str("checkout_id", checkoutID).
		Str("job_id", job.ID).
		Str("source", source).
		Bool("success", cb.Succeeded()).
		Msg("evento de liquidación encolado")
	return nil
}

// Query consulta el checkout al proveedor y, si el pago ya terminó, encola el resultado
// igual que un callback (cubre callbacks perdidos).
func (s *Service) Query(ctx context.Context, checkoutID string) (*dto.PaymentQueryResponse, error) {
	checkoutID = strings.TrimSpace(checkoutID)
	if checkoutID == "" {
		return nil, fmt.Errorf("%w: checkoutId requerido", domain.ErrInvalidInput)
	}
	qctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	cb, pending, err := s.payments.QueryStatus(qctx, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	out := &dto.PaymentQueryResponse{CheckoutID: checkoutID, Pending: pending}
	if pending || cb == nil {
		out.Pending = true
		return out, nil
	}
	out.ResultCode = cb.ResultCode
	out.ResultDesc = cb.ResultDesc
	if err := s.Submit(ctx, checkoutID, *cb, domsettlement.SourceQuery); err != nil {
		return nil, err
	}
	out.Enqueued = true
	return out, nil
}
