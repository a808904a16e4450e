package settlement

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Tier precio exacto -> duración de acceso.
type Tier struct {
	Amount   decimal.Decimal
	Duration time.Duration
}

// TierTable mapa total y determinista de monto a duración; lo no listado cae en Default.
type TierTable struct {
	tiers    []Tier
	fallback time.Duration
}

// DefaultTiers tarifas del hotspot (KES): 15 -> 4h, 20 -> 12h, 30 -> 24h; el resto 1h.
func DefaultTiers() *TierTable {
	return NewTierTable(time.Hour,
		Tier{Amount: decimal.NewFromInt(15), Duration: 4 * time.Hour},
		Tier{Amount: decimal.NewFromInt(20), Duration: 12 * time.Hour},
		Tier{Amount: decimal.NewFromInt(30), Duration: 24 * time.Hour},
	)
}

// NewTierTable ordena por monto ascendente. Un monto repetido conserva la última duración.
func NewTierTable(fallback time.Duration, tiers ...Tier) *TierTable {
	byAmount := make(map[string]Tier, len(tiers))
	for _, t := range tiers {
		byAmount[t.Amount.String()] = t
	}
	out := make([]Tier, 0, len(byAmount))
	for _, t := range byAmount {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Amount.LessThan(out[j].Amount) })
	return &TierTable{tiers: out, fallback: fallback}
}

// DurationFor devuelve la duración del tier cuyo monto coincide exactamente, o la de defecto.
func (t *TierTable) DurationFor(amount decimal.Decimal) time.Duration {
	for _, tier := range t.tiers {
		if tier.Amount.Equal(amount) {
			return tier.Duration
		}
	}
	return t.fallback
}

// Default duración para montos sin tier.
func (t *TierTable) Default() time.Duration { return t.fallback }

// Tiers copia de la tabla (para exponer precios al portal).
func (t *TierTable) Tiers() []Tier {
	return append([]Tier(nil), t.tiers...)
}
