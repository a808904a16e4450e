package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/hotspot-billing/internal/application/ports"
	"github.com/jhoicas/hotspot-billing/internal/clock"
	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
	"github.com/jhoicas/hotspot-billing/internal/domain/repository"
	domsettlement "github.com/jhoicas/hotspot-billing/internal/domain/settlement"
	"github.com/jhoicas/hotspot-billing/pkg/logger"
)

// Outcome resultado de procesar un Job.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeFailed      Outcome = "failed"
	OutcomeDuplicate   Outcome = "duplicate"           // la orden ya era terminal
	OutcomeUnmatched   Outcome = "unmatched"           // checkout sin orden: conciliación manual
	OutcomeGrantFailed Outcome = "grant_failed"        // acceso no habilitado, la orden sigue pending
	OutcomeUnapplied   Outcome = "completed_unapplied" // renovación cobrada, licencia sin extender
	OutcomeUnrecorded  Outcome = "granted_unrecorded"  // acceso habilitado, orden sin completar
	OutcomeBusy        Outcome = "busy"
	OutcomeError       Outcome = "error"
)

// Result qué orden tocó el Job y con qué resultado.
type Result struct {
	Kind    entity.OrderKind
	OrderID string
	Outcome Outcome
}

// Config políticas del procesador.
type Config struct {
	Tiers          *domsettlement.TierTable
	AccessValidity time.Duration // granted_until = ahora + AccessValidity
	GrantTimeout   time.Duration
	LockTTL        time.Duration
}

func (c *Config) defaults() {
	if c.Tiers == nil {
		c.Tiers = domsettlement.DefaultTiers()
	}
	if c.AccessValidity <= 0 {
		c.AccessValidity = 24 * time.Hour
	}
	if c.GrantTimeout <= 0 {
		c.GrantTimeout = 10 * time.Second
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Second
	}
}

// Processor aplica la máquina de estados pending -> completed | failed a un Job.
type Processor struct {
	accessOrders  repository.AccessOrderRepository
	licenseOrders repository.LicenseOrderRepository
	licenses      repository.LicenseRepository
	gateway       ports.AccessGateway
	locker        ports.OrderLocker // opcional
	clock         clock.Clock
	cfg           Config
	log           *logger.Logger
}

// NewProcessor construye el procesador. locker puede ser nil (una sola instancia del worker).
func NewProcessor(
	accessOrders repository.AccessOrderRepository,
	licenseOrders repository.LicenseOrderRepository,
	licenses repository.LicenseRepository,
	gateway ports.AccessGateway,
	locker ports.OrderLocker,
	clk clock.Clock,
	cfg Config,
	log *logger.Logger,
) *Processor {
	cfg.defaults()
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Processor{
		accessOrders: accessOrders, licenseOrders: licenseOrders, licenses: licenses,
		gateway: gateway, locker: locker, clock: clk, cfg: cfg, log: log.Component("settlement"),
	}
}

// ── Orden resuelta (unión de los dos tipos) ──────────────────────────────────

type target interface {
	kind() entity.OrderKind
	id() string
	status() entity.OrderStatus
}

type accessTarget struct{ order *entity.AccessOrder }

func (t accessTarget) kind() entity.OrderKind     { return entity.OrderKindAccess }
func (t accessTarget) id() string                 { return t.order.ID }
func (t accessTarget) status() entity.OrderStatus { return t.order.Status }

type licenseTarget struct{ order *entity.LicenseOrder }

func (t licenseTarget) kind() entity.OrderKind     { return entity.OrderKindLicense }
func (t licenseTarget) id() string                 { return t.order.ID }
func (t licenseTarget) status() entity.OrderStatus { return t.order.Status }

// resolve busca primero una orden de acceso y luego una de renovación. (nil, nil) = sin orden.
func (p *Processor) resolve(ctx context.Context, checkoutID string) (target, error) {
	ao, err := p.accessOrders.GetByCheckoutID(ctx, checkoutID)
	if err != nil {
		return nil, retryable("resolver orden de acceso", err)
	}
	if ao != nil {
		return accessTarget{order: ao}, nil
	}
	lo, err := p.licenseOrders.GetByCheckoutID(ctx, checkoutID)
	if err != nil {
		return nil, retryable("resolver orden de licencia", err)
	}
	if lo != nil {
		return licenseTarget{order: lo}, nil
	}
	return nil, nil
}

// ── Procesamiento ─────────────────────────────────────────────────────────────

// Process liquida un Job. Los errores devueltos son *RetryableError (incluye ErrOrderBusy) o
// ErrGrantUnrecorded, que no se reintenta; todo lo demás se resuelve en un Outcome.
func (p *Processor) Process(ctx context.Context, job domsettlement.Job) (Result, error) {
	log := p.log.With().Str("checkout_id", job.CheckoutID).Str("job_id", job.ID).Int("attempt", job.Attempt).Logger()

	if job.CheckoutID == "" {
		log.Error().Msg("evento sin checkout id, descartado")
		return Result{Outcome: OutcomeUnmatched}, nil
	}

	t, err := p.resolve(ctx, job.CheckoutID)
	if err != nil {
		return Result{Outcome: OutcomeError}, err
	}
	if t == nil {
		log.Error().
			Bool("success", job.Callback.Succeeded()).
			Str("receipt", job.Callback.ReceiptNumber("")).
			Msg("pago sin orden asociada: requiere conciliación manual")
		return Result{Outcome: OutcomeUnmatched}, nil
	}
	res := Result{Kind: t.kind(), OrderID: t.id()}

	if p.locker != nil {
		key := "settlement:order:" + t.id()
		token, ok, err := p.locker.TryLock(ctx, key, p.cfg.LockTTL)
		if err != nil {
			res.Outcome = OutcomeError
			return res, retryable("lock de orden", err)
		}
		if !ok {
			res.Outcome = OutcomeBusy
			return res, retryable("lock de orden", ErrOrderBusy)
		}
		defer func() {
			if err := p.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				log.Warn().Err(err).Str("order_id", res.OrderID).Msg("liberar lock de orden")
			}
		}()
		// releer con el lock tomado: otra instancia pudo cerrar la orden entre resolve y TryLock
		if t, err = p.resolve(ctx, job.CheckoutID); err != nil {
			res.Outcome = OutcomeError
			return res, err
		}
		if t == nil {
			res.Outcome = OutcomeUnmatched
			return res, nil
		}
	}

	if t.status().IsTerminal() {
		log.Debug().Str("order_id", t.id()).Str("status", string(t.status())).Msg("orden ya procesada, evento descartado")
		res.Outcome = OutcomeDuplicate
		return res, nil
	}

	if !job.Callback.Succeeded() {
		res.Outcome, err = p.fail(ctx, t)
		if err == nil && res.Outcome == OutcomeFailed {
			log.Info().Str("order_id", t.id()).Str("kind", string(t.kind())).Str("result_desc", job.Callback.ResultDesc).Msg("pago fallido o cancelado")
		}
		return res, err
	}

	switch o := t.(type) {
	case licenseTarget:
		res.Outcome, err = p.settleLicense(ctx, o.order, job)
	case accessTarget:
		res.Outcome, err = p.settleAccess(ctx, o.order, job)
	}
	return res, err
}

func (p *Processor) fail(ctx context.Context, t target) (Outcome, error) {
	var (
		ok  bool
		err error
	)
	switch t.kind() {
	case entity.OrderKindAccess:
		ok, err = p.accessOrders.Fail(ctx, t.id())
	default:
		ok, err = p.licenseOrders.Fail(ctx, t.id())
	}
	if err != nil {
		return OutcomeError, retryable("marcar orden failed", err)
	}
	if !ok {
		return OutcomeDuplicate, nil
	}
	return OutcomeFailed, nil
}

// settleLicense completa la orden y luego extiende la licencia, en ese orden.
func (p *Processor) settleLicense(ctx context.Context, o *entity.LicenseOrder, job domsettlement.Job) (Outcome, error) {
	receipt := job.Callback.ReceiptNumber(job.CheckoutID)
	ok, err := p.licenseOrders.Complete(ctx, o.ID, receipt)
	if err != nil {
		return OutcomeError, retryable("completar orden de licencia", err)
	}
	if !ok {
		return OutcomeDuplicate, nil
	}

	if err := p.licenses.Extend(ctx, o.LicenseID, o.PeriodEnd); err != nil {
		p.log.Error().Err(err).
			Str("order_id", o.ID).
			Str("license_id", o.LicenseID).
			Str("receipt", receipt).
			Time("period_end", o.PeriodEnd).
			Msg("renovación cobrada pero licencia sin extender")
		return OutcomeUnapplied, nil
	}

	ev := p.log.Info().Str("order_id", o.ID).Str("receipt", receipt).Time("expires_at", o.PeriodEnd)
	if o.License != nil {
		ev = ev.Str("client", o.License.ClientName)
	}
	ev.Msg("licencia renovada")
	return OutcomeCompleted, nil
}

// settleAccess habilita la MAC en el router y solo si eso funciona completa la orden.
func (p *Processor) settleAccess(ctx context.Context, o *entity.AccessOrder, job domsettlement.Job) (Outcome, error) {
	amount, ok := job.Callback.AmountPaid()
	if !ok {
		amount = o.Amount
	}
	duration := p.cfg.Tiers.DurationFor(amount)

	grantCtx, cancel := context.WithTimeout(ctx, p.cfg.GrantTimeout)
	err := p.gateway.Grant(grantCtx, o.MACAddress, duration)
	cancel()
	if err != nil {
		p.log.Error().Err(err).
			Str("order_id", o.ID).
			Str("mac", o.MACAddress).
			Dur("duration", duration).
			Msg("no se pudo habilitar el acceso, la orden queda pending")
		return OutcomeGrantFailed, nil
	}

	receipt := job.Callback.ReceiptNumber(job.CheckoutID)
	until := p.clock.Now().Add(p.cfg.AccessValidity)
	ok, err = p.accessOrders.Complete(ctx, o.ID, receipt, until)
	if err != nil {
		// el router ya aplicó el acceso: reintentar volvería a llamar a Grant
		p.log.Error().Err(err).
			Str("order_id", o.ID).
			Str("mac", o.MACAddress).
			Str("receipt", receipt).
			Time("granted_until", until).
			Msg("acceso habilitado pero orden sin completar")
		return OutcomeUnrecorded, fmt.Errorf("%w: orden %s: %v", ErrGrantUnrecorded, o.ID, err)
	}
	if !ok {
		return OutcomeDuplicate, nil
	}
	p.log.Info().
		Str("order_id", o.ID).
		Str("mac", o.MACAddress).
		Dur("duration", duration).
		Time("granted_until", until).
		Msg("acceso habilitado")
	return OutcomeCompleted, nil
}
