package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/hotspot-billing/internal/application/ports"
)

var _ ports.SettlementMetrics = (*Metrics)(nil)

// Config etiquetas constantes de todas las series.
type Config struct {
	ServiceName string
	Environment string
}

// Metrics implementación Prometheus de SettlementMetrics con registro propio.
type Metrics struct {
	registry *prometheus.Registry

	jobsProcessed   *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	jobsRetried     *prometheus.CounterVec
	jobsDeadLetter  *prometheus.CounterVec
	gateVerdicts    *prometheus.CounterVec
	paymentsStarted *prometheus.CounterVec
}

// New registra las métricas del motor de liquidación y los collectors de runtime.
func New(cfg Config) *Metrics {
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "hotspot-billing"
	}
	env := strings.TrimSpace(cfg.Environment)
	if env == "" {
		env = "unknown"
	}
	constLabels := prometheus.Labels{"service": service, "env": env}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "settlement_jobs_processed_total",
			Help:        "Eventos de liquidación procesados por tipo de orden y resultado.",
			ConstLabels: constLabels,
		}, []string{"kind", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "settlement_job_duration_seconds",
			Help:        "Latencia de liquidación de un evento, incluida la llamada al router.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: constLabels,
		}, []string{"kind"}),
		jobsRetried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "settlement_jobs_retried_total",
			Help:        "Eventos reencolados por motivo.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		jobsDeadLetter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "settlement_jobs_dead_lettered_total",
			Help:        "Eventos apartados para conciliación manual por motivo.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		gateVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "license_gate_verdicts_total",
			Help:        "Decisiones del gate de licencia.",
			ConstLabels: constLabels,
		}, []string{"verdict"}),
		paymentsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "payment_initiations_total",
			Help:        "Solicitudes STK push por tipo de orden y éxito.",
			ConstLabels: constLabels,
		}, []string{"kind", "ok"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.jobsProcessed,
		m.jobDuration,
		m.jobsRetried,
		m.jobsDeadLetter,
		m.gateVerdicts,
		m.paymentsStarted,
	)
	return m
}

// Registry para tests y exportadores adicionales.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler endpoint /metrics en formato de exposición Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) JobProcessed(kind, outcome string, elapsed time.Duration) {
	m.jobsProcessed.WithLabelValues(kind, outcome).Inc()
	m.jobDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) JobRetried(reason string) {
	m.jobsRetried.WithLabelValues(reason).Inc()
}

func (m *Metrics) JobDeadLettered(reason string) {
	m.jobsDeadLetter.WithLabelValues(reason).Inc()
}

func (m *Metrics) GateVerdict(verdict string) {
	m.gateVerdicts.WithLabelValues(verdict).Inc()
}

func (m *Metrics) PaymentInitiated(kind string, ok bool) {
	m.paymentsStarted.WithLabelValues(kind, strconv.FormatBool(ok)).Inc()
}
