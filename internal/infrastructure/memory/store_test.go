package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hotspot-billing/internal/domain"
	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seedLicense(t *testing.T, s *Store) *entity.License {
	t.Helper()
	l := &entity.License{
		ID:            "lic-1",
		Key:           "LIC-0011223344556677",
		ClientName:    "Hotspot Nairobi",
		UserLimit:     300,
		MonthlyAmount: decimal.NewFromInt(3000),
		Status:        entity.LicenseActive,
		ExpiresAt:     t0.AddDate(0, 1, 0),
		CreatedAt:     t0,
		UpdatedAt:     t0,
	}
	require.NoError(t, s.Licenses().Create(context.Background(), l))
	return l
}

func TestLicenseOrder_CompleteSoloUnaVez(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	lic := seedLicense(t, s)
	orders := s.LicenseOrders()
	require.NoError(t, orders.Create(ctx, &entity.LicenseOrder{
		ID: "o-1", LicenseID: lic.ID, TransactionID: "LIC_RENEW_1", Status: entity.OrderPending, CreatedAt: t0,
	}))
	require.NoError(t, orders.SetCheckoutID(ctx, "o-1", "ws_CO_1"))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := orders.Complete(ctx, "o-1", "RCP1")
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)

	ok, err := orders.Fail(ctx, "o-1")
	require.NoError(t, err)
	assert.False(t, ok, "una orden completada no vuelve a failed")

	got, err := orders.GetByCheckoutID(ctx, "ws_CO_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entity.OrderCompleted, got.Status)
	assert.Equal(t, "RCP1", got.ReceiptNumber)
	require.NotNil(t, got.License)
	assert.Equal(t, lic.Key, got.License.Key)
}

func TestLicenseOrder_ErroresYBusquedas(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	orders := s.LicenseOrders()

	_, err := orders.Complete(ctx, "no-existe", "R")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = orders.Fail(ctx, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, orders.SetCheckoutID(ctx, "no-existe", "ws"), domain.ErrNotFound)

	o := &entity.LicenseOrder{ID: "o-1", LicenseID: "lic-1", TransactionID: "TX", Status: entity.OrderPending}
	require.NoError(t, orders.Create(ctx, o))
	dup := *o
	dup.ID = "o-2"
	assert.ErrorIs(t, orders.Create(ctx, &dup), domain.ErrDuplicate)

	// sin checkout id no se concilia por checkout vacío
	got, err := orders.GetByCheckoutID(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLicenseOrder_ListRecentByLicense(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	orders := s.LicenseOrders()
	for i := 0; i < 7; i++ {
		require.NoError(t, orders.Create(ctx, &entity.LicenseOrder{
			ID:            string(rune('a' + i)),
			LicenseID:     "lic-1",
			TransactionID: string(rune('A' + i)),
			Status:        entity.OrderPending,
			CreatedAt:     t0.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, orders.Create(ctx, &entity.LicenseOrder{ID: "z", LicenseID: "lic-2", TransactionID: "Z", CreatedAt: t0}))

	list, err := orders.ListRecentByLicense(ctx, "lic-1", 5)
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.Equal(t, "g", list[0].ID)
	assert.Equal(t, "c", list[4].ID)
}

func TestAccessOrder_CompleteFijaGrantedUntil(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	orders := s.AccessOrders()
	require.NoError(t, orders.Create(ctx, &entity.AccessOrder{
		ID: "a-1", MACAddress: "AA:BB:CC:DD:EE:FF", TransactionID: "WIFI_1", Status: entity.OrderPending,
	}))
	require.NoError(t, orders.SetCheckoutID(ctx, "a-1", "ws_CO_2"))

	until := t0.Add(24 * time.Hour)
	ok, err := orders.Complete(ctx, "a-1", "RCP2", until)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = orders.Complete(ctx, "a-1", "RCP3", until.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := orders.GetByTransactionID(ctx, "WIFI_1")
	require.NoError(t, err)
	require.NotNil(t, got.GrantedUntil)
	assert.True(t, got.GrantedUntil.Equal(until))
	assert.Equal(t, "RCP2", got.ReceiptNumber)
}

func TestAccessOrder_FailDesdePending(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	orders := s.AccessOrders()
	require.NoError(t, orders.Create(ctx, &entity.AccessOrder{ID: "a-1", TransactionID: "WIFI_1", Status: entity.OrderPending}))

	ok, err := orders.Fail(ctx, "a-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = orders.Complete(ctx, "a-1", "R", t0)
	require.NoError(t, err)
	assert.False(t, ok, "una orden failed no se completa")
}

func TestLicense_ExtendYConteo(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	lic := seedLicense(t, s)
	licenses := s.Licenses()

	require.NoError(t, licenses.UpdateStatus(ctx, lic.ID, entity.LicenseSuspended))
	require.NoError(t, licenses.UpdateUserCount(ctx, lic.ID, 42))
	newExpiry := t0.AddDate(0, 3, 0)
	require.NoError(t, licenses.Extend(ctx, lic.ID, newExpiry))

	got, err := licenses.GetByKey(ctx, lic.Key)
	require.NoError(t, err)
	assert.Equal(t, entity.LicenseActive, got.Status)
	assert.True(t, got.ExpiresAt.Equal(newExpiry))
	assert.Equal(t, 42, got.CurrentUserCount)

	assert.ErrorIs(t, licenses.Create(ctx, &entity.License{ID: "lic-2", Key: lic.Key}), domain.ErrDuplicate)
	assert.ErrorIs(t, licenses.Extend(ctx, "no-existe", newExpiry), domain.ErrNotFound)

	missing, err := licenses.GetByKey(ctx, "LIC-NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUsers_EmailUnicoYPaginado(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	users := s.Users()
	for i, e := range []string{"a@x.io", "b@x.io", "c@x.io"} {
		require.NoError(t, users.Create(ctx, &entity.User{
			ID: e, Email: e, CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		}))
	}
	assert.ErrorIs(t, users.Create(ctx, &entity.User{ID: "dup", Email: "A@X.io"}), domain.ErrEmailAlreadyExists)

	n, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err := users.List(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b@x.io", list[0].Email)

	empty, err := users.List(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
