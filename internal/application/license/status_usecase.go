package license

import (
	"context"

	"github.com/jhoicas/hotspot-billing/internal/application/dto"
	"github.com/jhoicas/hotspot-billing/internal/domain/repository"
	"github.com/jhoicas/hotspot-billing/pkg/logger"
)

// RecentPaymentsLimit pagos mostrados junto al estado de la licencia.
const RecentPaymentsLimit = 5

// StatusUseCase vistas de solo lectura de la licencia (panel y validación).
type StatusUseCase struct {
	gate   *Gate
	orders repository.LicenseOrderRepository
	log    *logger.Logger
}

// NewStatusUseCase construye el caso de uso.
func NewStatusUseCase(gate *Gate, orders repository.LicenseOrderRepository, log *logger.Logger) *StatusUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &StatusUseCase{gate: gate, orders: orders, log: log}
}

// Status snapshot no bloqueante más los últimos pagos de renovación.
func (uc *StatusUseCase) Status(ctx context.Context) *dto.LicenseStatusResponse {
	return uc.StatusFrom(ctx, uc.gate.Inspect(ctx))
}

// StatusFrom igual que Status sobre un snapshot ya calculado en el request.
// Un fallo al listar pagos no rompe la respuesta.
func (uc *StatusUseCase) StatusFrom(ctx context.Context, snap *Snapshot) *dto.LicenseStatusResponse {
	if snap == nil {
		snap = uc.gate.Inspect(ctx)
	}
	out := &dto.LicenseStatusResponse{
		License:        *SnapshotResponse(snap),
		RecentPayments: []dto.LicensePaymentResponse{},
	}
	if snap.LicenseID == "" {
		return out
	}
	recent, err := uc.orders.ListRecentByLicense(ctx, snap.LicenseID, RecentPaymentsLimit)
	if err != nil {
		uc.log.Warn().Err(err).Str("license_id", snap.LicenseID).Msg("listar pagos recientes")
		return out
	}
	out.RecentPayments = toPaymentResponses(recent)
	return out
}

// Validate resumen de validez (isValid, isExpired, canAddUsers) sin denegar.
func (uc *StatusUseCase) Validate(ctx context.Context) *dto.LicenseSnapshotResponse {
	return SnapshotResponse(uc.gate.Inspect(ctx))
}
