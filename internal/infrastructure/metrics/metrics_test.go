package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(Config{ServiceName: "test", Environment: "test"})

	m.JobProcessed("access", "completed", 50*time.Millisecond)
	m.JobProcessed("access", "completed", 10*time.Millisecond)
	m.JobProcessed("license", "duplicate", time.Millisecond)
	m.JobRetried("store")
	m.JobDeadLettered("max_attempts")
	m.GateVerdict("USER_LIMIT_REACHED")
	m.PaymentInitiated("license", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.jobsProcessed.WithLabelValues("access", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsProcessed.WithLabelValues("license", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsRetried.WithLabelValues("store")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsDeadLetter.WithLabelValues("max_attempts")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gateVerdicts.WithLabelValues("USER_LIMIT_REACHED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.paymentsStarted.WithLabelValues("license", "false")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.jobDuration))
}

func TestMetrics_InstancesAreIndependent(t *testing.T) {
	a := New(Config{})
	b := New(Config{})
	a.JobRetried("busy")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.jobsRetried.WithLabelValues("busy")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.jobsRetried.WithLabelValues("busy")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New(Config{ServiceName: "svc", Environment: "dev"})
	m.GateVerdict("permitted")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `license_gate_verdicts_total{env="dev",service="svc",verdict="permitted"} 1`)
}
