package settlement

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hotspot-billing/internal/application/ports"
	domsettlement "github.com/jhoicas/hotspot-billing/internal/domain/settlement"
	"github.com/jhoicas/hotspot-billing/internal/infrastructure/queue"
)

type stubProcessor struct {
	mu    sync.Mutex
	fn    func(job domsettlement.Job) (Result, error)
	calls []domsettlement.Job
}

func (s *stubProcessor) Process(_ context.Context, job domsettlement.Job) (Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, job)
	s.mu.Unlock()
	return s.fn(job)
}

func (s *stubProcessor) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type recordingMetrics struct {
	ports.NopMetrics
	mu       sync.Mutex
	retried  []string
	dead     []string
	outcomes []string
}

func (m *recordingMetrics) JobProcessed(_ string, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingMetrics) JobRetried(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retried = append(m.retried, reason)
}

func (m *recordingMetrics) JobDeadLettered(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dead = append(m.dead, reason)
}

func delivery(attempt int) *ports.Delivery {
	return &ports.Delivery{Job: domsettlement.Job{ID: "job-1", CheckoutID: "ws_CO_1", Attempt: attempt}}
}

func TestWorker_RetryDelayExponencialConTope(t *testing.T) {
	w := NewWorker(queue.NewMemoryQueue(), &stubProcessor{}, WorkerConfig{MaxAttempts: 5, RetryBaseDelay: 2 * time.Second}, nil, nil)

	assert.Equal(t, 2*time.Second, w.RetryDelay(0))
	assert.Equal(t, 4*time.Second, w.RetryDelay(1))
	assert.Equal(t, 8*time.Second, w.RetryDelay(2))
	assert.Equal(t, maxRetryDelay, w.RetryDelay(10))
}

func TestWorker_ExitoNoReencola(t *testing.T) {
	q := queue.NewMemoryQueue()
	defer q.Close()
	proc := &stubProcessor{fn: func(domsettlement.Job) (Result, error) {
		return Result{Outcome: OutcomeCompleted}, nil
	}}
	m := &recordingMetrics{}
	w := NewWorker(q, proc, WorkerConfig{MaxAttempts: 3}, nil, m)

	w.Handle(context.Background(), delivery(0))

	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.DeadLetters())
	assert.Equal(t, []string{"completed"}, m.outcomes)
}

func TestWorker_ErrorReintentableReencolaConAttemptIncrementado(t *testing.T) {
	q := queue.NewMemoryQueue()
	defer q.Close()
	proc := &stubProcessor{fn: func(domsettlement.Job) (Result, error) {
		return Result{Outcome: OutcomeError}, retryable("resolver orden", errors.New("db caída"))
	}}
	m := &recordingMetrics{}
	w := NewWorker(q, proc, WorkerConfig{MaxAttempts: 3, RetryBaseDelay: time.Millisecond}, nil, m)

	w.Handle(context.Background(), delivery(0))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Job.Attempt)
	assert.Equal(t, []string{"store"}, m.retried)
	assert.Empty(t, q.DeadLetters())
}

func TestWorker_OrdenOcupadaSeReintentaComoBusy(t *testing.T) {
	q := queue.NewMemoryQueue()
	defer q.Close()
	proc := &stubProcessor{fn: func(domsettlement.Job) (Result, error) {
		return Result{Outcome: OutcomeBusy}, retryable("lock de orden", ErrOrderBusy)
	}}
	m := &recordingMetrics{}
	w := NewWorker(q, proc, WorkerConfig{MaxAttempts: 3, RetryBaseDelay: time.Millisecond}, nil, m)

	w.Handle(context.Background(), delivery(0))

	assert.Equal(t, []string{"busy"}, m.retried)
}

func TestWorker_ReintentosAgotadosVanADeadLetter(t *testing.T) {
	q := queue.NewMemoryQueue()
	defer q.Close()
	proc := &stubProcessor{fn: func(domsettlement.Job) (Result, error) {
		return Result{Outcome: OutcomeError}, retryable("completar orden", errors.New("db caída"))
	}}
	m := &recordingMetrics{}
	w := NewWorker(q, proc, WorkerConfig{MaxAttempts: 3, RetryBaseDelay: time.Millisecond}, nil, m)

	w.Handle(context.Background(), delivery(2))

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.True(t, strings.HasPrefix(dead[0].Reason, "max_attempts"))
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, []string{"max_attempts"}, m.dead)
}

func TestWorker_ErrorNoReintentableVaADeadLetter(t *testing.T) {
	q := queue.NewMemoryQueue()
	defer q.Close()
	proc := &stubProcessor{fn: func(domsettlement.Job) (Result, error) {
		return Result{}, errors.New("payload corrupto")
	}}
	w := NewWorker(q, proc, WorkerConfig{MaxAttempts: 5}, nil, nil)

	w.Handle(context.Background(), delivery(0))

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.True(t, strings.HasPrefix(dead[0].Reason, "fatal"))
}

func TestWorker_PanicoVaADeadLetterYNoDetieneElLoop(t *testing.T) {
	q := queue.NewMemoryQueue()
	defer q.Close()
	proc := &stubProcessor{fn: func(job domsettlement.Job) (Result, error) {
		if job.ID == "boom" {
			panic("nil map")
		}
		return Result{Outcome: OutcomeCompleted}, nil
	}}
	m := &recordingMetrics{}
	w := NewWorker(q, proc, WorkerConfig{MaxAttempts: 3}, nil, m)

	require.NoError(t, q.Enqueue(context.Background(), domsettlement.Job{ID: "boom", CheckoutID: "ws_CO_1"}))
	require.NoError(t, q.Enqueue(context.Background(), domsettlement.Job{ID: "ok", CheckoutID: "ws_CO_2"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool { return proc.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run no terminó tras cancelar el contexto")
	}

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "boom", dead[0].Job.ID)
	assert.True(t, strings.HasPrefix(dead[0].Reason, "panic"))
	assert.Equal(t, []string{"panic"}, m.dead)
}
