package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/config"
)

func testConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Orchestration: config.QueueConfig{Attempts: 2, BackoffBaseMs: 1},
		Scoring:       config.QueueConfig{Attempts: 3, BackoffBaseMs: 1},
		Workers:       2,
		DLQSize:       10,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not met in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSchedulerRunsTask(t *testing.T) {
	s := New(testConfig())
	defer s.Close()

	var calls atomic.Int32
	s.Register(KindOrchestration, func(ctx context.Context, task Task) error {
		calls.Add(1)
		return nil
	})
	s.Start()

	id, err := s.Enqueue(KindOrchestration, "q1")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	waitFor(t, func() bool { return calls.Load() == 1 })
	assert.Empty(t, s.DeadLetters())
}

func TestSchedulerRetriesThenSucceeds(t *testing.T) {
	s := New(testConfig())
	defer s.Close()

	var calls atomic.Int32
	s.Register(KindScoring, func(ctx context.Context, task Task) error {
		if calls.Add(1) < 3 {
			return errors.New("transient failure")
		}
		return nil
	})
	s.Start()

	_, err := s.Enqueue(KindScoring, "q1")
	require.NoError(t, err)

	waitFor(t, func() bool { return calls.Load() == 3 })
	assert.Empty(t, s.DeadLetters())
}

func TestSchedulerExhaustedGoesToDLQ(t *testing.T) {
	s := New(testConfig())
	defer s.Close()

	var calls atomic.Int32
	s.Register(KindOrchestration, func(ctx context.Context, task Task) error {
		calls.Add(1)
		return errors.New("always failing")
	})
	s.Start()

	_, err := s.Enqueue(KindOrchestration, "q1")
	require.NoError(t, err)

	waitFor(t, func() bool { return len(s.DeadLetters()) == 1 })
	assert.Equal(t, int32(2), calls.Load())

	entry := s.DeadLetters()[0]
	assert.Equal(t, "q1", entry.QueryID)
	assert.Equal(t, KindOrchestration, entry.Kind)
	assert.Equal(t, 2, entry.Attempts)
	assert.Contains(t, entry.Error, "always failing")
}

func TestSchedulerPermanentErrorSkipsRetry(t *testing.T) {
	s := New(testConfig())
	defer s.Close()

	var calls atomic.Int32
	s.Register(KindScoring, func(ctx context.Context, task Task) error {
		calls.Add(1)
		return Permanent(errors.New("not enough data"))
	})
	s.Start()

	_, err := s.Enqueue(KindScoring, "q1")
	require.NoError(t, err)

	waitFor(t, func() bool { return len(s.DeadLetters()) == 1 })
	assert.Equal(t, int32(1), calls.Load())
}

func TestTaskCarriesEffectiveMaxAttempts(t *testing.T) {
	// A zero-value config falls back to the scheduler defaults; tasks
	// must report those effective limits, not the raw config.
	s := New(config.SchedulerConfig{})
	defer s.Close()

	var finals atomic.Int32
	var maxAttempts atomic.Int32
	s.Register(KindOrchestration, func(ctx context.Context, task Task) error {
		maxAttempts.Store(int32(task.MaxAttempts))
		if task.Final() {
			finals.Add(1)
		}
		return errors.New("transient failure")
	})
	s.Start()

	_, err := s.Enqueue(KindOrchestration, "q1")
	require.NoError(t, err)

	waitFor(t, func() bool { return len(s.DeadLetters()) == 1 })
	assert.Equal(t, int32(2), maxAttempts.Load())
	// Only the second of the two attempts is final.
	assert.Equal(t, int32(1), finals.Load())
}

func TestSchedulerUnknownKind(t *testing.T) {
	s := New(testConfig())
	defer s.Close()

	_, err := s.Enqueue(TaskKind("bogus"), "q1")
	require.Error(t, err)
}

func TestPermanentWrapping(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	base := errors.New("root cause")
	p := Permanent(base)
	assert.True(t, IsPermanent(p))
	assert.True(t, errors.Is(p, base))
	assert.False(t, IsPermanent(base))
	assert.False(t, IsPermanent(fmt.Errorf("wrapped: %w", base)))
	assert.True(t, IsPermanent(fmt.Errorf("wrapped: %w", p)))
}

func TestComputeBackoffGrowth(t *testing.T) {
	base := 100 * time.Millisecond
	for attempt := 1; attempt <= 5; attempt++ {
		d := computeBackoff(attempt, base)
		expected := float64(base) * math.Pow(2, float64(attempt-1))
		low := time.Duration(expected * (1 - backoffJitterFraction))
		high := time.Duration(expected * (1 + backoffJitterFraction))
		assert.GreaterOrEqual(t, d, low, "attempt %d", attempt)
		assert.LessOrEqual(t, d, high, "attempt %d", attempt)
	}
}

func TestComputeBackoffCapped(t *testing.T) {
	d := computeBackoff(30, 5*time.Second)
	assert.LessOrEqual(t, d, time.Duration(float64(maxBackoff)*(1+backoffJitterFraction)))
}

func TestDeadLetterQueueBounded(t *testing.T) {
	q := newDeadLetterQueue(3)
	for i := 0; i < 5; i++ {
		q.add(DLQEntry{TaskID: fmt.Sprintf("t%d", i)})
	}
	entries := q.Entries()
	require.Len(t, entries, 3)
	// Oldest two were dropped.
	assert.Equal(t, "t2", entries[0].TaskID)
	assert.Equal(t, "t4", entries[2].TaskID)
}
