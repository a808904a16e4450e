package repository

import (
	"context"

	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
)

// LicenseOrderRepository define el puerto de persistencia para órdenes de renovación.
type LicenseOrderRepository interface {
	Create(ctx context.Context, order *entity.LicenseOrder) error
	GetByID(ctx context.Context, id string) (*entity.LicenseOrder, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*entity.LicenseOrder, error)
	// GetByCheckoutID carga la orden junto con su License.
	GetByCheckoutID(ctx context.Context, checkoutID string) (*entity.LicenseOrder, error)
	SetCheckoutID(ctx context.Context, id, checkoutID string) error
	// Complete y Fail solo transicionan desde pending. false = la orden ya era terminal.
	Complete(ctx context.Context, id, receiptNumber string) (bool, error)
	Fail(ctx context.Context, id string) (bool, error)
	ListRecentByLicense(ctx context.Context, licenseID string, limit int) ([]*entity.LicenseOrder, error)
}
