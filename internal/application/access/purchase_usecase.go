package access

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/hotspot-billing/internal/application/dto"
	"github.com/jhoicas/hotspot-billing/internal/application/ports"
	"github.com/jhoicas/hotspot-billing/internal/clock"
	"github.com/jhoicas/hotspot-billing/internal/domain"
	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
	"github.com/jhoicas/hotspot-billing/internal/domain/repository"
	domsettlement "github.com/jhoicas/hotspot-billing/internal/domain/settlement"
	"github.com/jhoicas/hotspot-billing/pkg/logger"
	"github.com/jhoicas/hotspot-billing/pkg/mpesa"
)

// PurchaseUseCase compra de acceso temporal desde el portal cautivo.
type PurchaseUseCase struct {
	orders   repository.AccessOrderRepository
	payments ports.PaymentInitiator
	tiers    *domsettlement.TierTable
	clock    clock.Clock
	timeout  time.Duration
	log      *logger.Logger
	metrics  ports.SettlementMetrics
}

// NewPurchaseUseCase construye el caso de uso. timeout acota la llamada de iniciación.
func NewPurchaseUseCase(
	orders repository.AccessOrderRepository,
	payments ports.PaymentInitiator,
	tiers *domsettlement.TierTable,
	clk clock.Clock,
	timeout time.Duration,
	log *logger.Logger,
	metrics ports.SettlementMetrics,
) *PurchaseUseCase {
	if tiers == nil {
		tiers = domsettlement.DefaultTiers()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &PurchaseUseCase{
		orders: orders, payments: payments, tiers: tiers, clock: clk,
		timeout: timeout, log: log.Component("access_purchase"), metrics: metrics,
	}
}

// Purchase valida teléfono, MAC y monto antes de tocar el proveedor, crea la orden pending
// e inicia el STK push. Si la iniciación falla la orden queda failed.
func (uc *PurchaseUseCase) Purchase(ctx context.Context, in dto.AccessPurchaseRequest) (*dto.AccessOrderResponse, error) {
	phone, err := mpesa.NormalizeMSISDN(in.Phone)
	if err != nil {
		return nil, domain.ErrInvalidPhone
	}
	mac, err := NormalizeMAC(in.MACAddress)
	if err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount debe ser mayor que cero", domain.ErrInvalidInput)
	}
	if !in.Amount.Equal(in.Amount.Truncate(0)) {
		return nil, fmt.Errorf("%w: amount debe ser un valor entero en KES", domain.ErrInvalidInput)
	}

	now := uc.clock.Now()
	order := &entity.AccessOrder{
		ID:            uuid.New().String(),
		MACAddress:    mac,
		Phone:         phone,
		Amount:        in.Amount,
		TransactionID: fmt.Sprintf("WIFI_%d_%s", now.Unix(), strings.ToUpper(uuid.New().String()[:8])),
		Status:        entity.OrderPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	initCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	checkoutID, err := uc.payments.Initiate(initCtx, phone, order.Amount, order.TransactionID)
	if err != nil {
		uc.metrics.PaymentInitiated(string(entity.OrderKindAccess), false)
		if _, ferr := uc.orders.Fail(context.WithoutCancel(ctx), order.ID); ferr != nil {
			uc.log.Error().Err(ferr).Str("transaction_id", order.TransactionID).Msg("marcar orden como failed tras fallo de iniciación")
		}
		uc.log.Warn().Err(err).
			Str("transaction_id", order.TransactionID).
			Str("phone", mpesa.MaskMSISDN(phone)).
			Msg("iniciación de pago de acceso fallida")
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentInitiation, err)
	}
	uc.metrics.PaymentInitiated(string(entity.OrderKindAccess), true)

	if err := uc.orders.SetCheckoutID(context.WithoutCancel(ctx), order.ID, checkoutID); err != nil {
		uc.log.Error().Err(err).
			Str("transaction_id", order.TransactionID).
			Str("checkout_id", checkoutID).
			Msg("guardar checkout id de acceso")
		return nil, fmt.Errorf("%w: transacción %s, checkout %s: %v", domain.ErrPaymentNotRecorded, order.TransactionID, checkoutID, err)
	}
	order.CheckoutID = checkoutID

	uc.log.Info().
		Str("transaction_id", order.TransactionID).
		Str("checkout_id", checkoutID).
		Str("mac", mac).
		Str("amount", order.Amount.String()).
		Msg("compra de acceso iniciada")
	return uc.toResponse(order), nil
}

// OrderByTransaction estado de la orden para el polling del portal.
func (uc *PurchaseUseCase) OrderByTransaction(ctx context.Context, transactionID string) (*dto.AccessOrderResponse, error) {
	o, err := uc.orders.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrNotFound
	}
	return uc.toResponse(o), nil
}

// Tiers tarifas publicadas en el portal.
func (uc *PurchaseUseCase) Tiers() []dto.AccessTierResponse {
	list := uc.tiers.Tiers()
	out := make([]dto.AccessTierResponse, 0, len(list))
	for _, t := range list {
		out = append(out, dto.AccessTierResponse{Amount: t.Amount, Duration: t.Duration.String()})
	}
	return out
}

func (uc *PurchaseUseCase) toResponse(o *entity.AccessOrder) *dto.AccessOrderResponse {
	return &dto.AccessOrderResponse{
		TransactionID: o.TransactionID,
		CheckoutID:    o.CheckoutID,
		MACAddress:    o.MACAddress,
		Amount:        o.Amount,
		Duration:      uc.tiers.DurationFor(o.Amount).String(),
		Status:        string(o.Status),
		ReceiptNumber: o.ReceiptNumber,
		GrantedUntil:  o.GrantedUntil,
		CreatedAt:     o.CreatedAt,
	}
}

// NormalizeMAC acepta EUI-48 con ":" o "-" y devuelve AA:BB:CC:DD:EE:FF.
func NormalizeMAC(s string) (string, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil || len(hw) != 6 {
		return "", domain.ErrInvalidMAC
	}
	return strings.ToUpper(hw.String()), nil
}
