package access

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
	domsettlement "github.com/jhoicas/hotspot-billing/internal/domain/settlement"
	"github.com/jhoicas/hotspot-billing/internal/infrastructure/memory"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakePayments struct {
	checkoutID string
	err        error
	references []string
}

func (f *fakePayments) Initiate(_ context.Context, _ string, _ decimal.Decimal, reference string) (string, error) {
	f.references = append(f.references, reference)
	if f.err != nil {
		return "", f.err
	}
	return f.checkoutID, nil
}

func (f *fakePayments) QueryStatus(context.Context, string) (*domsettlement.Callback, bool, error) {
	return nil, true, nil
}

func newPurchase(payments *fakePayments) (*PurchaseUseCase, *memory.Store) {
	store := memory.NewStore()
	uc := NewPurchaseUseCase(store.AccessOrders(), payments, nil, clock.NewFakeClock(now), time.Second, nil, nil)
	return uc, store
}

func TestPurchase_CreaOrdenPendingConCheckout(t *testing.T) {
	payments := &fakePayments{checkoutID: "ws_CO_A1"}
	uc, store := newPurchase(payments)
	ctx := context.Background()

	out, err := uc.Purchase(ctx, dto.AccessPurchaseRequest{
		Phone:      "254712345678",
		MACAddress: "aa-bb-cc-dd-ee-ff",
		Amount:     decimal.NewFromInt(20),
	})
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", out.MACAddress)
	assert.Equal(t, "ws_CO_A1", out.CheckoutID)
	assert.Equal(t, "pending", out.Status)
	assert.Equal(t, "12h0m0s", out.Duration)
	assert.Regexp(t, `^WIFI_1772366400_[0-9A-F]{8}$`, out.TransactionID)

	o, err := store.AccessOrders().GetByCheckoutID(ctx, "ws_CO_A1")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, entity.OrderPending, o.Status)

	polled, err := uc.OrderByTransaction(ctx, out.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, out.TransactionID, polled.TransactionID)
}

func TestPurchase_ValidaAntesDeLlamarAlProveedor(t *testing.T) {
	cases := []struct {
		name string
		in   dto.AccessPurchaseRequest
		want error
	}{
		{"teléfono local", dto.AccessPurchaseRequest{Phone: "0712345678", MACAddress: "AA:BB:CC:DD:EE:FF", Amount: decimal.NewFromInt(20)}, domain.ErrInvalidPhone},
		{"mac inválida", dto.AccessPurchaseRequest{Phone: "254712345678", MACAddress: "no-es-mac", Amount: decimal.NewFromInt(20)}, domain.ErrInvalidMAC},
		{"mac de 8 bytes", dto.AccessPurchaseRequest{Phone: "254712345678", MACAddress: "00:00:00:00:fe:80:00:00", Amount: decimal.NewFromInt(20)}, domain.ErrInvalidMAC},
		{"monto cero", dto.AccessPurchaseRequest{Phone: "254712345678", MACAddress: "AA:BB:CC:DD:EE:FF", Amount: decimal.Zero}, domain.ErrInvalidInput},
		{"monto fraccionario", dto.AccessPurchaseRequest{Phone: "254712345678", MACAddress: "AA:BB:CC:DD:EE:FF", Amount: decimal.RequireFromString("20.5")}, domain.ErrInvalidInput},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			payments := &fakePayments{checkoutID: "ws_CO_A1"}
			uc, _ := newPurchase(payments)
			_, err := uc.Purchase(context.Background(), c.in)
			assert.ErrorIs(t, err, c.want)
			assert.Empty(t, payments.references)
		})
	}
}

func TestPurchase_FalloDeIniciacionMarcaOrdenFailed(t *testing.T) {
	payments := &fakePayments{err: errors.New("timeout")}
	uc, store := newPurchase(payments)
	ctx := context.Background()

	_, err := uc.Purchase(ctx, dto.AccessPurchaseRequest{
		Phone:      "254712345678",
		MACAddress: "AA:BB:CC:DD:EE:FF",
		Amount:     decimal.NewFromInt(15),
	})
	assert.ErrorIs(t, err, domain.ErrPaymentInitiation)

	require.Len(t, payments.references, 1)
	o, err := store.AccessOrders().GetByTransactionID(ctx, payments.references[0])
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, entity.OrderFailed, o.Status)
}

func TestOrderByTransaction_Inexistente(t *testing.T) {
	uc, _ := newPurchase(&fakePayments{})
	_, err := uc.OrderByTransaction(context.Background(), "WIFI_0_X")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTiers(t *testing.T) {
	uc, _ := newPurchase(&fakePayments{})
	tiers := uc.Tiers()
	require.Len(t, tiers, 3)
	assert.Equal(t, "15", tiers[0].Amount.String())
	assert.Equal(t, "4h0m0s", tiers[0].Duration)
	assert.Equal(t, "30", tiers[2].Amount.String())
}

func TestNormalizeMAC(t *testing.T) {
	got, err := NormalizeMAC(" aa:bb:cc:dd:ee:0f ")
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:0F", got)

	_, err = NormalizeMAC("")
	assert.ErrorIs(t, err, domain.ErrInvalidMAC)
}

type checkoutNotSaved struct {
	*memory.AccessOrderRepo
}

func (checkoutNotSaved) SetCheckoutID(context.Context, string, string) error {
	return errors.New("deadlock detected")
}

func TestPurchase_CheckoutSinGuardarDevuelveErrorMapeable(t *testing.T) {
	store := memory.NewStore()
	payments := &fakePayments{checkoutID: "ws_CO_A9"}
	uc := NewPurchaseUseCase(checkoutNotSaved{store.AccessOrders()}, payments, nil, clock.NewFakeClock(now), time.Second, nil, nil)
	ctx := context.Background()

	_, err := uc.Purchase(ctx, dto.AccessPurchaseRequest{
		Phone:      "254712345678",
		MACAddress: "AA:BB:CC:DD:EE:FF",
		Amount:     decimal.NewFromInt(20),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPaymentNotRecorded)
	assert.NotErrorIs(t, err, domain.ErrNotFound)

	require.Len(t, payments.references, 1)
	o, err := store.AccessOrders().GetByTransactionID(ctx, payments.references[0])
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, entity.OrderPending, o.Status)
}
