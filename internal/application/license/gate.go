package license

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/hotspot-billing/internal/application/ports"
	"github.com/jhoicas/hotspot-billing/internal/clock"
	"github.com/jhoicas/hotspot-billing/internal/domain"
	"github.com/jhoicas/hotspot-billing/internal/domain/entity"
	"github.com/jhoicas/hotspot-billing/internal/domain/repository"
	"github.com/jhoicas/hotspot-billing/pkg/logger"
)

// Mode variante de configuración con la que corre la instalación.
type Mode string

const (
	ModeDemo     Mode = "demo"     // sin LICENSE_KEY: todo permitido
	ModeInvalid  Mode = "invalid"  // LICENSE_KEY sin registro
	ModeLicensed Mode = "licensed" // licencia encontrada
)

// Urgency de la próxima renovación.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"   // <= 7 días
	UrgencyMedium Urgency = "medium" // <= 14 días
	UrgencyLow    Urgency = "low"
)

// Códigos legibles por máquina de las denegaciones del gate.
const (
	CodeInvalidLicense       = "INVALID_LICENSE"
	CodeLicenseExpired       = "LICENSE_EXPIRED"
	CodeUserLimitReached     = "USER_LIMIT_REACHED"
	CodeLicenseValidationErr = "LICENSE_VALIDATION_ERROR"
)

// Settings configuración explícita del gate, inyectada al arrancar.
type Settings struct {
	Key string // vacío = modo demo
}

// Demo indica si no hay licencia configurada.
func (s Settings) Demo() bool { return s.Key == "" }

// Snapshot estado calculado de la licencia para el request en curso.
type Snapshot struct {
	Mode                Mode
	LicenseID           string
	Key                 string
	ClientName          string
	Status              string
	Valid               bool
	Expired             bool
	UserLimit           int
	CurrentUserCount    int
	PercentUsed         int
	CanAddUsers         bool
	ExpiresAt           time.Time
	DaysUntilExpiration int
	Urgency             Urgency
	MonthlyAmount       decimal.Decimal
	Error               bool // el lookup falló; el resto de campos no es confiable
}

// DenialError denegación del gate bloqueante. Unwrap devuelve el sentinel de dominio.
type DenialError struct {
	Code     string
	Message  string
	Data     map[string]any
	Snapshot *Snapshot
	err      error
}

func (e *DenialError) Error() string { return e.Code + ": " + e.Message }
func (e *DenialError) Unwrap() error { return e.err }

// Gate pre-chequeo síncrono de la licencia para rutas que crean usuarios o pagos.
type Gate struct {
	settings Settings
	licenses repository.LicenseRepository
	users    repository.UserRepository
	clock    clock.Clock
	log      *logger.Logger
	metrics  ports.SettlementMetrics
}

// NewGate construye el gate. En modo demo registra la advertencia una sola vez, aquí.
func NewGate(settings Settings, licenses repository.LicenseRepository, users repository.UserRepository, clk clock.Clock, log *logger.Logger, metrics ports.SettlementMetrics) *Gate {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	g := &Gate{settings: settings, licenses: licenses, users: users, clock: clk, log: log.Component("license_gate"), metrics: metrics}
	if settings.Demo() {
		g.log.Warn().Msg("LICENSE_KEY no configurada: modo demo, sin límites de licencia")
	}
	return g
}

// Demo indica si el gate corre en modo demo.
func (g *Gate) Demo() bool { return g.settings.Demo() }

// Authorize variante bloqueante. Devuelve *DenialError si la licencia no permite continuar;
// cualquier otro error es un fallo de infraestructura.
func (g *Gate) Authorize(ctx context.Context) (*Snapshot, error) {
	if g.Demo() {
		g.metrics.GateVerdict(string(ModeDemo))
		return demoSnapshot(), nil
	}

	lic, err := g.licenses.GetByKey(ctx, g.settings.Key)
	if err != nil {
		g.metrics.GateVerdict("error")
		return nil, fmt.Errorf("license gate: get license: %w", err)
	}
	if lic == nil {
		g.metrics.GateVerdict(CodeInvalidLicense)
		return nil, &DenialError{
			Code:    CodeInvalidLicense,
			Message: "la licencia configurada no existe",
			err:     domain.ErrInvalidLicense,
		}
	}

	now := g.clock.Now()
	if lic.IsExpired(now) || lic.Status != entity.LicenseActive {
		snap := g.snapshot(lic, now)
		g.metrics.GateVerdict(CodeLicenseExpired)
		return nil, &DenialError{
			Code:     CodeLicenseExpired,
			Message:  "la licencia está vencida o inactiva, renueve para continuar",
			Data:     map[string]any{"expiresAt": lic.ExpiresAt, "status": lic.Status},
			Snapshot: snap,
			err:      domain.ErrLicenseExpired,
		}
	}

	if err := g.refreshUserCount(ctx, lic); err != nil {
		g.metrics.GateVerdict("error")
		return nil, err
	}

	snap := g.snapshot(lic, now)
	if lic.CurrentUserCount >= lic.UserLimit {
		g.metrics.GateVerdict(CodeUserLimitReached)
		return nil, &DenialError{
			Code:     CodeUserLimitReached,
			Message:  fmt.Sprintf("límite de usuarios alcanzado (%d/%d)", lic.CurrentUserCount, lic.UserLimit),
			Data:     map[string]any{"currentUsers": lic.CurrentUserCount, "userLimit": lic.UserLimit},
			Snapshot: snap,
			err:      domain.ErrUserLimitReached,
		}
	}
	g.metrics.GateVerdict("permitted")
	return snap, nil
}

// Inspect variante no bloqueante: nunca deniega y nunca devuelve error.
func (g *Gate) Inspect(ctx context.Context) *Snapshot {
	if g.Demo() {
		return demoSnapshot()
	}
	lic, err := g.licenses.GetByKey(ctx, g.settings.Key)
	if err != nil {
		g.log.Error().Err(err).Msg("consultar licencia")
		return &Snapshot{Mode: ModeLicensed, Key: g.settings.Key, Error: true}
	}
	if lic == nil {
		return &Snapshot{Mode: ModeInvalid, Key: g.settings.Key}
	}
	if err := g.refreshUserCount(ctx, lic); err != nil {
		// conteo cacheado; el snapshot sigue siendo útil para mostrar
		g.log.Warn().Err(err).Str("license_id", lic.ID).Msg("refrescar conteo de usuarios")
	}
	return g.snapshot(lic, g.clock.Now())
}

// refreshUserCount relee el conteo real y persiste solo si cambió.
func (g *Gate) refreshUserCount(ctx context.Context, lic *entity.License) error {
	count, err := g.users.Count(ctx)
	if err != nil {
		return fmt.Errorf("license gate: count users: %w", err)
	}
	if count == lic.CurrentUserCount {
		return nil
	}
	if err := g.licenses.UpdateUserCount(ctx, lic.ID, count); err != nil {
		g.log.Warn().Err(err).Str("license_id", lic.ID).Int("count", count).Msg("persistir conteo de usuarios")
	}
	lic.CurrentUserCount = count
	return nil
}

func (g *Gate) snapshot(lic *entity.License, now time.Time) *Snapshot {
	expired := lic.IsExpired(now)
	days := DaysUntil(lic.ExpiresAt, now)
	valid := !expired && lic.Status == entity.LicenseActive
	return &Snapshot{
		Mode:                ModeLicensed,
		LicenseID:           lic.ID,
		Key:                 lic.Key,
		ClientName:          lic.ClientName,
		Status:              lic.Status,
		Valid:               valid,
		Expired:             expired,
		UserLimit:           lic.UserLimit,
		CurrentUserCount:    lic.CurrentUserCount,
		PercentUsed:         PercentUsed(lic.CurrentUserCount, lic.UserLimit),
		CanAddUsers:         valid && lic.CurrentUserCount < lic.UserLimit,
		ExpiresAt:           lic.ExpiresAt,
		DaysUntilExpiration: days,
		Urgency:             UrgencyFor(days),
		MonthlyAmount:       lic.MonthlyAmount,
	}
}

func demoSnapshot() *Snapshot {
	return &Snapshot{Mode: ModeDemo, Valid: true, CanAddUsers: true}
}

// PercentUsed round(100*count/limit); un cupo <= 0 cuenta como lleno.
func PercentUsed(count, limit int) int {
	if limit <= 0 {
		return 100
	}
	return int(math.Round(100 * float64(count) / float64(limit)))
}

// DaysUntil ceil((expiry - now) / 1 día). Negativo si ya venció.
func DaysUntil(expiry, now time.Time) int {
	return int(math.Ceil(expiry.Sub(now).Hours() / 24))
}

// UrgencyFor clasifica los días restantes.
func UrgencyFor(days int) Urgency {
	switch {
	case days <= 7:
		return UrgencyHigh
	case days <= 14:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// AsDenial extrae la denegación del gate si err la contiene.
func AsDenial(err error) (*DenialError, bool) {
	var d *DenialError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
