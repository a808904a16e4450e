package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hotspot-billing/internal/application/ports"
	"github.com/jhoicas/hotspot-billing/internal/clock"
	"github.com/jhoicas/hotspot-billing/internal/domain"
	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
	domsettlement "github.com/jhoicas/hotspot-billing/internal/domain/settlement"
	"github.com/jhoicas/hotspot-billing/internal/infrastructure/lock"
	"github.com/jhoicas/hotspot-billing/internal/infrastructure/memory"
	"github.com/jhoicas/hotspot-billing/internal/infrastructure/queue"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// ── Fakes ────────────────────────────────────────────────────────────────────

type grantCall struct {
	mac      string
	duration time.Duration
}

type fakeGateway struct {
	mu    sync.Mutex
	err   error
	calls []grantCall
}

func (g *fakeGateway) Grant(_ context.Context, mac string, d time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, grantCall{mac: mac, duration: d})
	return g.err
}

type failingAccessOrders struct {
	*memory.AccessOrderRepo
}

func (failingAccessOrders) GetByCheckoutID(context.Context, string) (*entity.AccessOrder, error) {
	return nil, errors.New("conexión rechazada")
}

// completeFailsOnce falla el primer Complete después de habilitar el acceso.
type completeFailsOnce struct {
	*memory.AccessOrderRepo
	mu     sync.Mutex
	failed bool
}

func (r *completeFailsOnce) Complete(ctx context.Context, id, receipt string, until time.Time) (bool, error) {
	r.mu.Lock()
	first := !r.failed
	r.failed = true
	r.mu.Unlock()
	if first {
		return false, errors.New("conexión perdida")
	}
	return r.AccessOrderRepo.Complete(ctx, id, receipt, until)
}

type failingExtend struct {
	*memory.LicenseRepo
}

func (failingExtend) Extend(context.Context, string, time.Time) error {
	return errors.New("timeout")
}

// ── Fixture ──────────────────────────────────────────────────────────────────

type fixture struct {
	store   *memory.Store
	gateway *fakeGateway
	locker  *lock.MemoryLocker
	clock   *clock.FakeClock
	proc    *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewStore(),
		gateway: &fakeGateway{},
		clock:   clock.NewFakeClock(t0),
	}
	f.locker = lock.NewMemoryLocker(f.clock)
	f.proc = NewProcessor(
		f.store.AccessOrders(), f.store.LicenseOrders(), f.store.Licenses(),
		f.gateway, f.locker, f.clock, Config{}, nil,
	)
	return f
}

func (f *fixture) seedLicenseOrder(t *testing.T, checkoutID string) (*entity.License, *entity.LicenseOrder) {
	t.Helper()
	ctx := context.Background()
	lic := &entity.License{
		ID:            "lic-1",
		Key:           "LIC-0000000000000001",
		ClientName:    "Cafe Kilimani",
		Status:        entity.LicenseActive,
		MonthlyAmount: decimal.NewFromInt(3000),
		UserLimit:     300,
		IssuedAt:      t0.AddDate(0, -1, 0),
		ExpiresAt:     t0.AddDate(0, 0, 5),
	}
	require.NoError(t, f.store.Licenses().Create(ctx, lic))
	start, end := domsettlement.RenewalWindow(lic.ExpiresAt, t0, 1)
	o := &entity.LicenseOrder{
		ID:            "lo-1",
		LicenseID:     lic.ID,
		Amount:        decimal.NewFromInt(3000),
		Phone:         "254712345678",
		Months:        1,
		TransactionID: "LIC_RENEW_1_AAAA",
		CheckoutID:    checkoutID,
		Status:        entity.OrderPending,
		PeriodStart:   start,
		PeriodEnd:     end,
		CreatedAt:     t0,
	}
	require.NoError(t, f.store.LicenseOrders().Create(ctx, o))
	return lic, o
}

func (f *fixture) seedAccessOrder(t *testing.T, checkoutID string, amount int64) *entity.AccessOrder {
	t.Helper()
	o := &entity.AccessOrder{
		ID:            "ao-" + checkoutID,
		MACAddress:    "AA:BB:CC:DD:EE:FF",
		Phone:         "254712345678",
		Amount:        decimal.NewFromInt(amount),
		TransactionID: "WIFI_1_" + checkoutID,
		CheckoutID:    checkoutID,
		Status:        entity.OrderPending,
		CreatedAt:     t0,
	}
	require.NoError(t, f.store.AccessOrders().Create(context.Background(), o))
	return o
}

func code(n int) *int { return &n }

func successJob(checkoutID string, amount any, receipt string) domsettlement.Job {
	items := []domsettlement.MetadataItem{{Name: domsettlement.ItemReceiptNumber, Value: receipt}}
	if amount != nil {
		items = append(items, domsettlement.MetadataItem{Name: domsettlement.ItemAmount, Value: amount})
	}
	return domsettlement.Job{
		ID:         "job-" + checkoutID,
		CheckoutID: checkoutID,
		Callback:   domsettlement.Callback{CheckoutRequestID: checkoutID, ResultCode: code(0), Items: items},
	}
}

func failedJob(checkoutID string) domsettlement.Job {
	return domsettlement.Job{
		ID:         "job-fail-" + checkoutID,
		CheckoutID: checkoutID,
		Callback: domsettlement.Callback{
			CheckoutRequestID: checkoutID,
			ResultCode:        code(1032),
			ResultDesc:        "Request cancelled by user",
		},
	}
}

// ── Renovaciones ─────────────────────────────────────────────────────────────

func TestProcess_RenovacionExitosaExtiendeLicencia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lic, order := f.seedLicenseOrder(t, "ws_CO_L1")

	res, err := f.proc.Process(ctx, successJob("ws_CO_L1", 3000.0, "NLJ7RT61SV"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, entity.OrderKindLicense, res.Kind)

	got, err := f.store.Licenses().GetByID(ctx, lic.ID)
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.Equal(order.PeriodEnd))
	assert.True(t, got.ExpiresAt.Equal(lic.ExpiresAt.AddDate(0, 1, 0)))
	assert.Equal(t, entity.LicenseActive, got.Status)

	o, err := f.store.LicenseOrders().GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderCompleted, o.Status)
	assert.Equal(t, "NLJ7RT61SV", o.ReceiptNumber)
}

func TestProcess_CallbackDuplicadoExtiendeUnaSolaVez(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lic, order := f.seedLicenseOrder(t, "ws_CO_L1")

	_, err := f.proc.Process(ctx, successJob("ws_CO_L1", 3000.0, "NLJ7RT61SV"))
	require.NoError(t, err)
	res, err := f.proc.Process(ctx, successJob("ws_CO_L1", 3000.0, "NLJ7RT61SV"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)

	got, err := f.store.Licenses().GetByID(ctx, lic.ID)
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.Equal(order.PeriodEnd), "la segunda entrega no debe extender otra vez")
}

func TestProcess_RenovacionFallidaNoExtiende(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lic, order := f.seedLicenseOrder(t, "ws_CO_L1")

	res, err := f.proc.Process(ctx, failedJob("ws_CO_L1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)

	got, _ := f.store.Licenses().GetByID(ctx, lic.ID)
	assert.True(t, got.ExpiresAt.Equal(lic.ExpiresAt))
	o, _ := f.store.LicenseOrders().GetByID(ctx, order.ID)
	assert.Equal(t, entity.OrderFailed, o.Status)

	// un éxito tardío no revive una orden terminal
	res, err = f.proc.Process(ctx, successJob("ws_CO_L1", 3000.0, "LATE"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	got, _ = f.store.Licenses().GetByID(ctx, lic.ID)
	assert.True(t, got.ExpiresAt.Equal(lic.ExpiresAt))
}

func TestProcess_SinReciboUsaCheckoutID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, order := f.seedLicenseOrder(t, "ws_CO_L1")

	job := domsettlement.Job{ID: "j", CheckoutID: "ws_CO_L1", Callback: domsettlement.Callback{ResultCode: code(0)}}
	res, err := f.proc.Process(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)

	o, _ := f.store.LicenseOrders().GetByID(ctx, order.ID)
	assert.Equal(t, "ws_CO_L1", o.ReceiptNumber)
}

func TestProcess_ExtensionFallidaQuedaCompletadaSinAplicar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lic, order := f.seedLicenseOrder(t, "ws_CO_L1")
	f.proc.licenses = failingExtend{f.store.Licenses()}

	res, err := f.proc.Process(ctx, successJob("ws_CO_L1", 3000.0, "R1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnapplied, res.Outcome)

	o, _ := f.store.LicenseOrders().GetByID(ctx, order.ID)
	assert.Equal(t, entity.OrderCompleted, o.Status)
	got, _ := f.store.Licenses().GetByID(ctx, lic.ID)
	assert.True(t, got.ExpiresAt.Equal(lic.ExpiresAt))
}

// ── Acceso ───────────────────────────────────────────────────────────────────

func TestProcess_AccesoExitosoHabilitaMAC(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedAccessOrder(t, "ws_CO_A1", 20)

	res, err := f.proc.Process(ctx, successJob("ws_CO_A1", 20.0, "QKA1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, entity.OrderKindAccess, res.Kind)

	require.Len(t, f.gateway.calls, 1)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", f.gateway.calls[0].mac)
	assert.Equal(t, 12*time.Hour, f.gateway.calls[0].duration)

	o, _ := f.store.AccessOrders().GetByTransactionID(ctx, order.TransactionID)
	assert.Equal(t, entity.OrderCompleted, o.Status)
	assert.Equal(t, "QKA1", o.ReceiptNumber)
	require.NotNil(t, o.GrantedUntil)
	assert.True(t, o.GrantedUntil.Equal(t0.Add(24*time.Hour)))
}

func TestProcess_AccesoSinMontoUsaElDeLaOrden(t *testing.T) {
	f := newFixture(t)
	f.seedAccessOrder(t, "ws_CO_A1", 15)

	_, err := f.proc.Process(context.Background(), successJob("ws_CO_A1", nil, "QKA1"))
	require.NoError(t, err)
	require.Len(t, f.gateway.calls, 1)
	assert.Equal(t, 4*time.Hour, f.gateway.calls[0].duration)
}

func TestProcess_MontoDesconocidoUsaDuracionPorDefecto(t *testing.T) {
	f := newFixture(t)
	f.seedAccessOrder(t, "ws_CO_A1", 50)

	_, err := f.proc.Process(context.Background(), successJob("ws_CO_A1", "50", "QKA1"))
	require.NoError(t, err)
	require.Len(t, f.gateway.calls, 1)
	assert.Equal(t, time.Hour, f.gateway.calls[0].duration)
}

func TestProcess_FalloDelRouterDejaOrdenPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedAccessOrder(t, "ws_CO_A1", 20)
	f.gateway.err = domain.ErrGrantFailed

	res, err := f.proc.Process(ctx, successJob("ws_CO_A1", 20.0, "QKA1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeGrantFailed, res.Outcome)

	o, _ := f.store.AccessOrders().GetByTransactionID(ctx, order.TransactionID)
	assert.Equal(t, entity.OrderPending, o.Status)
	assert.Nil(t, o.GrantedUntil)
}

func TestProcess_RouterRecuperadoCompletaEnElSiguienteCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedAccessOrder(t, "ws_CO_A1", 20)

	f.gateway.err = domain.ErrGrantFailed
	res, err := f.proc.Process(ctx, successJob("ws_CO_A1", 20.0, "QKA1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeGrantFailed, res.Outcome)

	// el proveedor reenvía el éxito y el router ya responde
	f.gateway.err = nil
	res, err = f.proc.Process(ctx, successJob("ws_CO_A1", 20.0, "QKA1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	require.Len(t, f.gateway.calls, 2)

	o, _ := f.store.AccessOrders().GetByTransactionID(ctx, order.TransactionID)
	assert.Equal(t, entity.OrderCompleted, o.Status)
	require.NotNil(t, o.GrantedUntil)

	// una entrega más sobre la orden completada no vuelve a llamar al router
	res, err = f.proc.Process(ctx, successJob("ws_CO_A1", 20.0, "QKA1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, res.Outcome)
	assert.Len(t, f.gateway.calls, 2)
}

func TestProcess_CompletarFallaTrasHabilitarNoSeReintenta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedAccessOrder(t, "ws_CO_A1", 20)
	f.proc.accessOrders = &completeFailsOnce{AccessOrderRepo: f.store.AccessOrders()}

	res, err := f.proc.Process(ctx, successJob("ws_CO_A1", 20.0, "QKA1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGrantUnrecorded)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, OutcomeUnrecorded, res.Outcome)
	require.Len(t, f.gateway.calls, 1)

	// el worker lo aparta en dead-letter en vez de reencolarlo
	q := queue.NewMemoryQueue()
	defer q.Close()
	f.seedAccessOrder(t, "ws_CO_A2", 20)
	f.proc.accessOrders = &completeFailsOnce{AccessOrderRepo: f.store.AccessOrders()}
	w := NewWorker(q, f.proc, WorkerConfig{MaxAttempts: 5}, nil, nil)
	w.Handle(ctx, &ports.Delivery{Job: successJob("ws_CO_A2", 20.0, "QKA2")})

	assert.Equal(t, 0, q.Len())
	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "ws_CO_A2", dead[0].Job.CheckoutID)
	assert.Len(t, f.gateway.calls, 2, "un Grant por orden")

	o, _ := f.store.AccessOrders().GetByTransactionID(ctx, order.TransactionID)
	assert.Equal(t, entity.OrderPending, o.Status)
}

func TestProcess_AccesoCanceladoNoLlamaAlRouter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedAccessOrder(t, "ws_CO_A1", 20)

	res, err := f.proc.Process(ctx, failedJob("ws_CO_A1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Empty(t, f.gateway.calls)

	o, _ := f.store.AccessOrders().GetByTransactionID(ctx, order.TransactionID)
	assert.Equal(t, entity.OrderFailed, o.Status)
}

// ── Casos borde ──────────────────────────────────────────────────────────────

func TestProcess_CheckoutSinOrden(t *testing.T) {
	f := newFixture(t)

	res, err := f.proc.Process(context.Background(), successJob("ws_CO_NADIE", 20.0, "X"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, res.Outcome)
	assert.Empty(t, f.gateway.calls)
}

func TestProcess_ErrorDeStoreEsReintentable(t *testing.T) {
	f := newFixture(t)
	f.proc.accessOrders = failingAccessOrders{f.store.AccessOrders()}

	res, err := f.proc.Process(context.Background(), successJob("ws_CO_A1", 20.0, "X"))
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, OutcomeError, res.Outcome)
}

func TestProcess_OrdenBloqueadaPorOtraInstancia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedAccessOrder(t, "ws_CO_A1", 20)

	_, ok, err := f.locker.TryLock(ctx, "settlement:order:"+order.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := f.proc.Process(ctx, successJob("ws_CO_A1", 20.0, "X"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOrderBusy)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, OutcomeBusy, res.Outcome)
	assert.Empty(t, f.gateway.calls)
}

func TestProcess_LiberaElLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.seedAccessOrder(t, "ws_CO_A1", 20)

	_, err := f.proc.Process(ctx, successJob("ws_CO_A1", 20.0, "X"))
	require.NoError(t, err)

	_, ok, err := f.locker.TryLock(ctx, "settlement:order:"+order.ID, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "el lock debe liberarse al terminar")
}

func TestProcess_SinLocker(t *testing.T) {
	f := newFixture(t)
	f.proc.locker = nil
	f.seedAccessOrder(t, "ws_CO_A1", 30)

	res, err := f.proc.Process(context.Background(), successJob("ws_CO_A1", 30.0, "X"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 24*time.Hour, f.gateway.calls[0].duration)
}
