package license

import (
	"context"
	"fmt"

	"github.com/jhoicas/hotspot-billing/internal/application/ports"
	"github.com/jhoicas/hotspot-billing/internal/domain"
	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
	"github.com/jhoicas/hotspot-billing/internal/domain/repository"
)

// ReceiptUseCase comprobante PDF de un pago de renovación.
// Solo se genera para órdenes completed (con número de recibo).
type ReceiptUseCase struct {
	orders    repository.LicenseOrderRepository
	licenses  repository.LicenseRepository
	generator ports.ReceiptGenerator
}

// NewReceiptUseCase construye el caso de uso.
func NewReceiptUseCase(orders repository.LicenseOrderRepository, licenses repository.LicenseRepository, generator ports.ReceiptGenerator) *ReceiptUseCase {
	return &ReceiptUseCase{orders: orders, licenses: licenses, generator: generator}
}

// Download devuelve el PDF y el nombre de archivo sugerido.
//
// Retorna:
//   - domain.ErrNotFound           si la orden no existe.
//   - domain.ErrOrderNotCompleted  si la orden sigue pending o falló.
func (uc *ReceiptUseCase) Download(ctx context.Context, orderID string) (pdfBytes []byte, filename string, err error) {
	// ── 1. Cargar orden ───────────────────────────────────────────────────────
	order, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, "", fmt.Errorf("recibo: obtener orden: %w", err)
	}
	if order == nil {
		return nil, "", domain.ErrNotFound
	}
	if order.Status != entity.OrderCompleted {
		return nil, "", domain.ErrOrderNotCompleted
	}

	// ── 2. Cargar licencia ────────────────────────────────────────────────────
	lic, err := uc.licenses.GetByID(ctx, order.LicenseID)
	if err != nil {
		return nil, "", fmt.Errorf("recibo: obtener licencia: %w", err)
	}
	if lic == nil {
		return nil, "", domain.ErrLicenseNotFound
	}

	// ── 3. Generar PDF ────────────────────────────────────────────────────────
	pdfBytes, err = uc.generator.GenerateLicenseReceipt(order, lic)
	if err != nil {
		return nil, "", fmt.Errorf("recibo: generar pdf: %w", err)
	}
	return pdfBytes, fmt.Sprintf("recibo-%s.pdf", order.ReceiptNumber), nil
}
