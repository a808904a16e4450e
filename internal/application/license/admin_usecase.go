package license

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/hotspot-billing/internal/application/dto"
	"github.com/jhoicas/hotspot-billing/internal/clock"
	"github.com/jhoicas/hotspot-billing/internal/domain"
	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
	"github.com/jhoicas/hotspot-billing/internal/domain/repository"
)

// Valores por defecto de una licencia nueva.
var (
	DefaultMonthlyAmount  = decimal.NewFromInt(3000)
	DefaultUserLimit      = 300
	DefaultDurationMonths = 1
)

// listRecentPayments pagos incluidos por licencia en el listado de administración.
const listRecentPayments = 3

// AdminUseCase alta, listado y cambio de estado de licencias.
type AdminUseCase struct {
	licenses repository.LicenseRepository
	orders   repository.LicenseOrderRepository
	clock    clock.Clock
}

// NewAdminUseCase construye el caso de uso.
func NewAdminUseCase(licenses repository.LicenseRepository, orders repository.LicenseOrderRepository, clk clock.Clock) *AdminUseCase {
	if clk == nil {
		clk = clock.Real{}
	}
	return &AdminUseCase{licenses: licenses, orders: orders, clock: clk}
}

// Create da de alta una licencia activa con clave generada.
func (uc *AdminUseCase) Create(ctx context.Context, in dto.CreateLicenseRequest) (*dto.LicenseResponse, error) {
	name := strings.TrimSpace(in.ClientName)
	if name == "" {
		return nil, fmt.Errorf("%w: clientName es requerido", domain.ErrInvalidInput)
	}
	monthly := DefaultMonthlyAmount
	if in.MonthlyAmount != nil {
		monthly = *in.MonthlyAmount
	}
	if !monthly.IsPositive() {
		return nil, fmt.Errorf("%w: monthlyAmount debe ser mayor que cero", domain.ErrInvalidInput)
	}
	limit := in.UserLimit
	if limit == 0 {
		limit = DefaultUserLimit
	}
	months := in.DurationMonths
	if months == 0 {
		months = DefaultDurationMonths
	}
	if limit < 0 || months < 0 || months > MaxRenewMonths {
		return nil, fmt.Errorf("%w: userLimit y durationMonths inválidos", domain.ErrInvalidInput)
	}

	key, err := NewLicenseKey()
	if err != nil {
		return nil, err
	}
	now := uc.clock.Now()
	lic := &entity.License{
		ID:            uuid.New().String(),
		Key:           key,
		ClientName:    name,
		ContactPhone:  strings.TrimSpace(in.ContactPhone),
		ContactEmail:  strings.TrimSpace(in.ContactEmail),
		Notes:         in.Notes,
		Status:        entity.LicenseActive,
		MonthlyAmount: monthly,
		UserLimit:     limit,
		IssuedAt:      now,
		ExpiresAt:     now.AddDate(0, months, 0),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.licenses.Create(ctx, lic); err != nil {
		return nil, err
	}
	return uc.toLicenseResponse(lic, nil), nil
}

// List licencias con campos calculados y sus últimos pagos.
func (uc *AdminUseCase) List(ctx context.Context, page dto.PageRequest) ([]*dto.LicenseResponse, error) {
	page.DefaultPage()
	list, err := uc.licenses.List(ctx, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	out := make([]*dto.LicenseResponse, 0, len(list))
	for _, lic := range list {
		recent, err := uc.orders.ListRecentByLicense(ctx, lic.ID, listRecentPayments)
		if err != nil {
			return nil, err
		}
		out = append(out, uc.toLicenseResponse(lic, recent))
	}
	return out, nil
}

// GetByKey licencia por clave.
func (uc *AdminUseCase) GetByKey(ctx context.Context, key string) (*dto.LicenseResponse, error) {
	lic, err := uc.licenses.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if lic == nil {
		return nil, domain.ErrLicenseNotFound
	}
	recent, err := uc.orders.ListRecentByLicense(ctx, lic.ID, RecentPaymentsLimit)
	if err != nil {
		return nil, err
	}
	return uc.toLicenseResponse(lic, recent), nil
}

// UpdateStatus override administrativo del estado (active | expired | suspended).
func (uc *AdminUseCase) UpdateStatus(ctx context.Context, key string, in dto.UpdateLicenseStatusRequest) (*dto.LicenseResponse, error) {
	if !entity.ValidLicenseStatus(in.Status) {
		return nil, fmt.Errorf("%w: status debe ser active, expired o suspended", domain.ErrInvalidInput)
	}
	lic, err := uc.licenses.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if lic == nil {
		return nil, domain.ErrLicenseNotFound
	}
	if err := uc.licenses.UpdateStatus(ctx, lic.ID, in.Status); err != nil {
		return nil, err
	}
	lic.Status = in.Status
	lic.UpdatedAt = uc.clock.Now()
	return uc.toLicenseResponse(lic, nil), nil
}

func (uc *AdminUseCase) toLicenseResponse(lic *entity.License, recent []*entity.LicenseOrder) *dto.LicenseResponse {
	now := uc.clock.Now()
	days := DaysUntil(lic.ExpiresAt, now)
	out := &dto.LicenseResponse{
		ID:                  lic.ID,
		LicenseKey:          lic.Key,
		ClientName:          lic.ClientName,
		ContactPhone:        lic.ContactPhone,
		ContactEmail:        lic.ContactEmail,
		Notes:               lic.Notes,
		Status:              lic.Status,
		MonthlyAmount:       lic.MonthlyAmount,
		UserLimit:           lic.UserLimit,
		CurrentUsers:        lic.CurrentUserCount,
		PercentUsed:         PercentUsed(lic.CurrentUserCount, lic.UserLimit),
		IssuedAt:            lic.IssuedAt,
		ExpiresAt:           lic.ExpiresAt,
		IsExpired:           lic.IsExpired(now),
		DaysUntilExpiration: days,
		Urgency:             string(UrgencyFor(days)),
		CreatedAt:           lic.CreatedAt,
	}
	if len(recent) > 0 {
		out.RecentPayments = toPaymentResponses(recent)
	}
	return out
}

// NewLicenseKey LIC- seguido de 16 dígitos hexadecimales en mayúscula.
func NewLicenseKey() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generar clave de licencia: %w", err)
	}
	return "LIC-" + strings.ToUpper(hex.EncodeToString(b[:])), nil
}
