package ports

import "time"

// SettlementMetrics observabilidad del motor de liquidación y del gate.
type SettlementMetrics interface {
	JobProcessed(kind, outcome string, elapsed time.Duration)
	JobRetried(reason string)
	JobDeadLettered(reason string)
	GateVerdict(verdict string)
	PaymentInitiated(kind string, ok bool)
}

// NopMetrics descarta todas las observaciones.
type NopMetrics struct{}

func (NopMetrics) JobProcessed(string, string, time.Duration) {}
func (NopMetrics) JobRetried(string)                          {}
func (NopMetrics) JobDeadLettered(string)                     {}
func (NopMetrics) GateVerdict(string)                         {}
func (NopMetrics) PaymentInitiated(string, bool)              {}
