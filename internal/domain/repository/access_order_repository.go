package repository

import (
	"context"
	"time"

	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
)

// AccessOrderRepository define el puerto de persistencia para órdenes de acceso a la red.
type AccessOrderRepository interface {
	Create(ctx context.Context, order *entity.AccessOrder) error
	GetByTransactionID(ctx context.Context, transactionID string) (*entity.AccessOrder, error)
	GetByCheckoutID(ctx context.Context, checkoutID string) (*entity.AccessOrder, error)
	SetCheckoutID(ctx context.Context, id, checkoutID string) error
	// Complete y Fail solo transicionan desde pending. false = la orden ya era terminal.
	Complete(ctx context.Context, id, receiptNumber string, grantedUntil time.Time) (bool, error)
	Fail(ctx context.Context, id string) (bool, error)
}
