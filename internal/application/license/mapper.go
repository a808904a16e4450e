package license

import (
	"github.com/jhoicas/hotspot-billing/internal/application/dto"
	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
)

// SnapshotResponse mapea el snapshot del gate a su representación HTTP.
func SnapshotResponse(s *Snapshot) *dto.LicenseSnapshotResponse {
	if s == nil {
		return nil
	}
	out := &dto.LicenseSnapshotResponse{
		Mode:                string(s.Mode),
		Valid:               s.Valid,
		Expired:             s.Expired,
		Status:              s.Status,
		ClientName:          s.ClientName,
		LicenseKey:          s.Key,
		UserLimit:           s.UserLimit,
		CurrentUsers:        s.CurrentUserCount,
		PercentUsed:         s.PercentUsed,
		CanAddUsers:         s.CanAddUsers,
		DaysUntilExpiration: s.DaysUntilExpiration,
		Urgency:             string(s.Urgency),
		MonthlyAmount:       s.MonthlyAmount,
		Error:               s.Error,
	}
	if !s.ExpiresAt.IsZero() {
		t := s.ExpiresAt
		out.ExpiresAt = &t
	}
	switch {
	case s.Mode == ModeDemo:
		out.Message = "modo demo: sin licencia configurada"
	case s.Mode == ModeInvalid:
		out.Message = "la licencia configurada no existe"
	case s.Error:
		out.Message = "no se pudo consultar la licencia"
	}
	return out
}

func toPaymentResponse(o *entity.LicenseOrder) dto.LicensePaymentResponse {
	return dto.LicensePaymentResponse{
		ID:            o.ID,
		TransactionID: o.TransactionID,
		CheckoutID:    o.CheckoutID,
		ReceiptNumber: o.ReceiptNumber,
		Amount:        o.Amount,
		Months:        o.Months,
		Status:        string(o.Status),
		PeriodStart:   o.PeriodStart,
		PeriodEnd:     o.PeriodEnd,
		CreatedAt:     o.CreatedAt,
	}
}

func toPaymentResponses(list []*entity.LicenseOrder) []dto.LicensePaymentResponse {
	out := make([]dto.LicensePaymentResponse, 0, len(list))
	for _, o := range list {
		out = append(out, toPaymentResponse(o))
	}
	return out
}
