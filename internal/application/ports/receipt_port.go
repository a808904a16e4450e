package ports

import "github.com/jhoicas/hotspot-billing/internal/domain/entity"

// ReceiptGenerator genera el comprobante PDF de un pago de licencia completado.
type ReceiptGenerator interface {
	GenerateLicenseReceipt(order *entity.LicenseOrder, license *entity.License) ([]byte, error)
}
