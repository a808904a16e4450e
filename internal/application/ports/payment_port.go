package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/hotspot-billing/internal/domain/settlement"
)

// PaymentInitiator puerto de salida hacia el proveedor de pagos push (M-Pesa STK).
// El contexto debe llevar timeout: es una llamada de red bloqueante.
type PaymentInitiator interface {
	// Initiate envía la solicitud de pago al teléfono y devuelve el checkout id del proveedor.
	Initiate(ctx context.Context, phone string, amount decimal.Decimal, reference string) (checkoutID string, err error)
	// QueryStatus consulta el resultado de un checkout. pending=true si el pago aún no terminó.
	QueryStatus(ctx context.Context, checkoutID string) (cb *settlement.Callback, pending bool, err error)
}
