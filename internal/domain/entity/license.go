package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados administrativos de una licencia.
const (
	LicenseActive    = "active"
	LicenseExpired   = "expired"
	LicenseSuspended = "suspended" // forzado por un administrador, aún antes de vencer
)

// ValidLicenseStatus indica si s es un estado administrativo conocido.
func ValidLicenseStatus(s string) bool {
	return s == LicenseActive || s == LicenseExpired || s == LicenseSuspended
}

// License derecho de uso de un cliente: hasta UserLimit usuarios hasta ExpiresAt.
// ExpiresAt es la única fuente de verdad de "vencida"; Status es un override administrativo.
type License struct {
	ID               string
	Key              string // LIC-XXXXXXXXXXXXXXXX, único
	ClientName       string
	ContactPhone     string
	ContactEmail     string
	Notes            string
	Status           string
	MonthlyAmount    decimal.Decimal
	UserLimit        int
	CurrentUserCount int // proyección cacheada del conteo real de usuarios
	IssuedAt         time.Time
	ExpiresAt        time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsExpired compara contra el reloj, no contra Status.
func (l *License) IsExpired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}
