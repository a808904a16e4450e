package license

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hotspot-billing/internal/application/dto"
	"github.com/jhoicas/hotspot-billing/internal/clock"
	"github.com/jhoicas/hotspot-billing/internal/domain"
	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
	"github.com/jhoicas/hotspot-billing/internal/infrastructure/memory"
)

func TestAdmin_CreateConValoresPorDefecto(t *testing.T) {
	store := memory.NewStore()
	uc := NewAdminUseCase(store.Licenses(), store.LicenseOrders(), clock.NewFakeClock(now))

	out, err := uc.Create(context.Background(), dto.CreateLicenseRequest{ClientName: "  Cafe Kilimani "})
	require.NoError(t, err)

	assert.Regexp(t, `^LIC-[0-9A-F]{16}$`, out.LicenseKey)
	assert.Equal(t, "Cafe Kilimani", out.ClientName)
	assert.Equal(t, entity.LicenseActive, out.Status)
	assert.Equal(t, 300, out.UserLimit)
	assert.True(t, out.MonthlyAmount.Equal(decimal.NewFromInt(3000)))
	assert.True(t, out.ExpiresAt.Equal(now.AddDate(0, 1, 0)))
	assert.False(t, out.IsExpired)
}

func TestAdmin_CreateValidaEntrada(t *testing.T) {
	store := memory.NewStore()
	uc := NewAdminUseCase(store.Licenses(), store.LicenseOrders(), clock.NewFakeClock(now))
	ctx := context.Background()

	_, err := uc.Create(ctx, dto.CreateLicenseRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	zero := decimal.Zero
	_, err = uc.Create(ctx, dto.CreateLicenseRequest{ClientName: "x", MonthlyAmount: &zero})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = uc.Create(ctx, dto.CreateLicenseRequest{ClientName: "x", UserLimit: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAdmin_UpdateStatusYGetByKey(t *testing.T) {
	store := memory.NewStore()
	uc := NewAdminUseCase(store.Licenses(), store.LicenseOrders(), clock.NewFakeClock(now))
	ctx := context.Background()

	created, err := uc.Create(ctx, dto.CreateLicenseRequest{ClientName: "Hostel Westlands"})
	require.NoError(t, err)

	_, err = uc.UpdateStatus(ctx, created.LicenseKey, dto.UpdateLicenseStatusRequest{Status: "borrada"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	out, err := uc.UpdateStatus(ctx, created.LicenseKey, dto.UpdateLicenseStatusRequest{Status: entity.LicenseSuspended})
	require.NoError(t, err)
	assert.Equal(t, entity.LicenseSuspended, out.Status)

	got, err := uc.GetByKey(ctx, created.LicenseKey)
	require.NoError(t, err)
	assert.Equal(t, entity.LicenseSuspended, got.Status)

	_, err = uc.GetByKey(ctx, "LIC-NOEXISTE")
	assert.ErrorIs(t, err, domain.ErrLicenseNotFound)
}

func TestStatus_IncluyePagosRecientes(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Licenses().Create(ctx, activeLicense(20*24*time.Hour, 300, 0)))
	require.NoError(t, store.LicenseOrders().Create(ctx, &entity.LicenseOrder{
		ID: "lo-1", LicenseID: "lic-1", TransactionID: "LIC_RENEW_1_A", Status: entity.OrderCompleted,
		Amount: decimal.NewFromInt(3000), Months: 1, CreatedAt: now,
	}))
	gate := NewGate(Settings{Key: testKey}, store.Licenses(), store.Users(), clock.NewFakeClock(now), nil, nil)
	uc := NewStatusUseCase(gate, store.LicenseOrders(), nil)

	out := uc.Status(ctx)
	assert.Equal(t, "licensed", out.License.Mode)
	assert.True(t, out.License.Valid)
	require.Len(t, out.RecentPayments, 1)
	assert.Equal(t, "LIC_RENEW_1_A", out.RecentPayments[0].TransactionID)

	v := uc.Validate(ctx)
	assert.True(t, v.CanAddUsers)
}

func TestStatus_ModoDemo(t *testing.T) {
	store := memory.NewStore()
	gate := NewGate(Settings{}, store.Licenses(), store.Users(), clock.NewFakeClock(now), nil, nil)
	uc := NewStatusUseCase(gate, store.LicenseOrders(), nil)

	out := uc.Status(context.Background())
	assert.Equal(t, "demo", out.License.Mode)
	assert.NotEmpty(t, out.License.Message)
	assert.Empty(t, out.RecentPayments)
}

// ── Recibos ──────────────────────────────────────────────────────────────────

type stubReceipts struct {
	err error
}

func (s stubReceipts) GenerateLicenseReceipt(order *entity.LicenseOrder, _ *entity.License) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF-" + order.ReceiptNumber), nil
}

func TestReceipt_SoloOrdenesCompletadas(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Licenses().Create(ctx, activeLicense(24*time.Hour, 300, 0)))
	require.NoError(t, store.LicenseOrders().Create(ctx, &entity.LicenseOrder{
		ID: "lo-ok", LicenseID: "lic-1", TransactionID: "T1", Status: entity.OrderCompleted, ReceiptNumber: "NLJ7RT61SV",
	}))
	require.NoError(t, store.LicenseOrders().Create(ctx, &entity.LicenseOrder{
		ID: "lo-pending", LicenseID: "lic-1", TransactionID: "T2", Status: entity.OrderPending,
	}))
	uc := NewReceiptUseCase(store.LicenseOrders(), store.Licenses(), stubReceipts{})

	pdf, name, err := uc.Download(ctx, "lo-ok")
	require.NoError(t, err)
	assert.Equal(t, "recibo-NLJ7RT61SV.pdf", name)
	assert.Equal(t, "%PDF-NLJ7RT61SV", string(pdf))

	_, _, err = uc.Download(ctx, "lo-pending")
	assert.ErrorIs(t, err, domain.ErrOrderNotCompleted)

	_, _, err = uc.Download(ctx, "nada")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	uc = NewReceiptUseCase(store.LicenseOrders(), store.Licenses(), stubReceipts{err: errors.New("fuente faltante")})
	_, _, err = uc.Download(ctx, "lo-ok")
	assert.Error(t, err)
}
