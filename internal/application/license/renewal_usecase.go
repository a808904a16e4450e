package license

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/hotspot-billing/internal/application/dto"
	"github.com/jhoicas/hotspot-billing/internal/application/ports"
	"github.com/jhoicas/hotspot-billing/internal/clock"
	"github.com/jhoicas/hotspot-billing/internal/domain"
	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
	"github.com/jhoicas/hotspot-billing/internal/domain/repository"
	"github.com/jhoicas/hotspot-billing/internal/domain/settlement"
	"github.com/jhoicas/hotspot-billing/pkg/logger"
	"github.com/jhoicas/hotspot-billing/pkg/mpesa"
)

// Límites de meses por renovación.
const (
	MinRenewMonths = 1
	MaxRenewMonths = 36
)

// RenewalUseCase crea órdenes de renovación y dispara el STK push.
type RenewalUseCase struct {
	licenses repository.LicenseRepository
	orders   repository.LicenseOrderRepository
	payments ports.PaymentInitiator
	clock    clock.Clock
	timeout  time.Duration
	log      *logger.Logger
	metrics  ports.SettlementMetrics
}

// NewRenewalUseCase construye el caso de uso. timeout acota la llamada de iniciación.
func NewRenewalUseCase(
	licenses repository.LicenseRepository,
	orders repository.LicenseOrderRepository,
	payments ports.PaymentInitiator,
	clk clock.Clock,
	timeout time.Duration,
	log *logger.Logger,
	metrics ports.SettlementMetrics,
) *RenewalUseCase {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RenewalUseCase{
		licenses: licenses, orders: orders, payments: payments,
		clock: clk, timeout: timeout, log: log.Component("license_renewal"), metrics: metrics,
	}
}

// Renew valida la entrada (antes de cualquier llamada externa), crea la orden pending con su
// ventana de cobertura e inicia el pago. Si la iniciación falla la orden queda failed.
func (uc *RenewalUseCase) Renew(ctx context.Context, in dto.LicenseRenewRequest) (*dto.LicenseRenewResponse, error) {
	key := strings.TrimSpace(in.LicenseKey)
	if key == "" || strings.TrimSpace(in.Phone) == "" {
		return nil, fmt.Errorf("%w: licenseKey y phone son requeridos", domain.ErrInvalidInput)
	}
	months := in.Months
	if months == 0 {
		months = MinRenewMonths
	}
	if months < MinRenewMonths || months > MaxRenewMonths {
		return nil, fmt.Errorf("%w: months debe estar entre %d y %d", domain.ErrInvalidInput, MinRenewMonths, MaxRenewMonths)
	}
	phone, err := mpesa.NormalizeMSISDN(in.Phone)
	if err != nil {
		return nil, domain.ErrInvalidPhone
	}

	lic, err := uc.licenses.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if lic == nil {
		return nil, domain.ErrLicenseNotFound
	}

	now := uc.clock.Now()
	amount := lic.MonthlyAmount.Mul(decimal.NewFromInt(int64(months)))
	start, end := settlement.RenewalWindow(lic.ExpiresAt, now, months)

	order := &entity.LicenseOrder{
		ID:            uuid.New().String(),
		LicenseID:     lic.ID,
		Amount:        amount,
		Phone:         phone,
		Months:        months,
		TransactionID: NewRenewalTransactionID(now),
		Status:        entity.OrderPending,
		PeriodStart:   start,
		PeriodEnd:     end,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	initCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	checkoutID, err := uc.payments.Initiate(initCtx, phone, amount, order.TransactionID)
	if err != nil {
		uc.metrics.PaymentInitiated(string(entity.OrderKindLicense), false)
		if _, ferr := uc.orders.Fail(context.WithoutCancel(ctx), order.ID); ferr != nil {
			uc.log.Error().Err(ferr).Str("transaction_id", order.TransactionID).Msg("marcar orden como failed tras fallo de iniciación")
		}
		uc.log.Warn().Err(err).
			Str("transaction_id", order.TransactionID).
			Str("phone", mpesa.MaskMSISDN(phone)).
			Msg("iniciación de pago de renovación fallida")
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentInitiation, err)
	}
	uc.metrics.PaymentInitiated(string(entity.OrderKindLicense), true)

	if err := uc.orders.SetCheckoutID(context.WithoutCancel(ctx), order.ID, checkoutID); err != nil {
		// el STK ya llegó al teléfono: sin checkout id el callback no se podrá conciliar
		uc.log.Error().Err(err).
			Str("transaction_id", order.TransactionID).
			Str("checkout_id", checkoutID).
			Msg("guardar checkout id de renovación")
		return nil, fmt.Errorf("%w: transacción %s, checkout %s: %v", domain.ErrPaymentNotRecorded, order.TransactionID, checkoutID, err)
	}
	order.CheckoutID = checkoutID

	uc.log.Info().
		Str("license_key", lic.Key).
		Str("transaction_id", order.TransactionID).
		Str("checkout_id", checkoutID).
		Str("amount", amount.String()).
		Int("months", months).
		Msg("renovación iniciada")

	return &dto.LicenseRenewResponse{
		TransactionID: order.TransactionID,
		CheckoutID:    checkoutID,
		Amount:        amount,
		Months:        months,
		PeriodStart:   start,
		PeriodEnd:     end,
		Message:       "solicitud de pago enviada, confirme en su teléfono",
	}, nil
}

// PaymentByTransaction estado de una orden de renovación (polling).
func (uc *RenewalUseCase) PaymentByTransaction(ctx context.Context, transactionID string) (*dto.LicensePaymentResponse, error) {
	o, err := uc.orders.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrNotFound
	}
	out := toPaymentResponse(o)
	return &out, nil
}

// NewRenewalTransactionID LIC_RENEW_<unix>_<sufijo>: único aunque dos renovaciones caigan en el mismo segundo.
func NewRenewalTransactionID(now time.Time) string {
	return fmt.Sprintf("LIC_RENEW_%d_%s", now.Unix(), strings.ToUpper(uuid.New().String()[:8]))
}
