// Package scheduler runs orchestration and scoring tasks on worker pools
// with per-queue retry budgets, exponential backoff, and a bounded dead
// letter queue for exhausted tasks.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/config"
)

// TaskKind names a queue.
type TaskKind string

const (
	KindOrchestration TaskKind = "orchestration"
	KindScoring       TaskKind = "scoring"
)

// Task is one unit of work bound to a query. MaxAttempts carries the
// queue's effective retry limit so handlers can tell the final attempt
// without re-deriving configuration defaults.
type Task struct {
	ID          string
	QueryID     string
	Kind        TaskKind
	Attempt     int
	MaxAttempts int
	EnqueuedAt  time.Time
}

// Final reports whether no further retries remain after this attempt.
func (t Task) Final() bool { return t.Attempt >= t.MaxAttempts }

// Handler executes a task. A returned error triggers a retry unless it is
// marked permanent.
type Handler func(ctx context.Context, task Task) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the scheduler fails the task immediately instead
// of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

type queue struct {
	tasks       chan Task
	maxAttempts int
	backoffBase time.Duration
	handler     Handler
}

// Scheduler owns the two task queues and their workers.
type Scheduler struct {
	queues  map[TaskKind]*queue
	dlq     *deadLetterQueue
	workers int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	closeOnce sync.Once
}

const queueBuffer = 256

// New builds a scheduler from configuration. Handlers are registered with
// Register before Start.
func New(cfg config.SchedulerConfig) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		queues:  make(map[TaskKind]*queue),
		dlq:     newDeadLetterQueue(cfg.DLQSize),
		workers: cfg.Workers,
		ctx:     ctx,
		cancel:  cancel,
	}
	if s.workers <= 0 {
		s.workers = 4
	}
	s.queues[KindOrchestration] = &queue{
		tasks:       make(chan Task, queueBuffer),
		maxAttempts: orDefault(cfg.Orchestration.Attempts, 2),
		backoffBase: time.Duration(orDefault(cfg.Orchestration.BackoffBaseMs, 5000)) * time.Millisecond,
	}
	s.queues[KindScoring] = &queue{
		tasks:       make(chan Task, queueBuffer),
		maxAttempts: orDefault(cfg.Scoring.Attempts, 3),
		backoffBase: time.Duration(orDefault(cfg.Scoring.BackoffBaseMs, 2000)) * time.Millisecond,
	}
	return s
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Register installs the handler for a task kind. Must be called before
// Start.
func (s *Scheduler) Register(kind TaskKind, h Handler) {
	q, ok := s.queues[kind]
	if !ok {
		return
	}
	q.handler = h
}

// Start launches the worker pools.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		for kind, q := range s.queues {
			for i := 0; i < s.workers; i++ {
				s.wg.Add(1)
				go s.work(kind, q)
			}
		}
	})
}

// Close stops accepting work, cancels in-flight tasks, and waits for the
// workers to exit.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
}

// Enqueue submits a new task for queryID on the given queue and returns
// its task ID.
func (s *Scheduler) Enqueue(kind TaskKind, queryID string) (string, error) {
	q, ok := s.queues[kind]
	if !ok {
		return "", eris.Errorf("scheduler: unknown task kind %q", kind)
	}
	task := Task{
		ID:          uuid.New().String(),
		QueryID:     queryID,
		Kind:        kind,
		Attempt:     1,
		MaxAttempts: q.maxAttempts,
		EnqueuedAt:  time.Now().UTC(),
	}
	select {
	case q.tasks <- task:
		return task.ID, nil
	case <-s.ctx.Done():
		return "", eris.New("scheduler: closed")
	default:
		return "", eris.Errorf("scheduler: %s queue full", kind)
	}
}

// DeadLetters returns a snapshot of the dead letter queue.
func (s *Scheduler) DeadLetters() []DLQEntry {
	return s.dlq.Entries()
}

func (s *Scheduler) work(kind TaskKind, q *queue) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case task := <-q.tasks:
			s.run(q, task)
		}
	}
}

func (s *Scheduler) run(q *queue, task Task) {
	log := zap.L().With(
		zap.String("task_id", task.ID),
		zap.String("query_id", task.QueryID),
		zap.String("kind", string(task.Kind)),
		zap.Int("attempt", task.Attempt),
	)

	if q.handler == nil {
		log.Error("no handler registered")
		return
	}

	err := q.handler(s.ctx, task)
	if err == nil {
		log.Debug("task completed")
		return
	}

	if IsPermanent(err) || task.Attempt >= q.maxAttempts {
		s.dlq.add(DLQEntry{
			TaskID:    task.ID,
			QueryID:   task.QueryID,
			Kind:      task.Kind,
			Error:     err.Error(),
			Attempts:  task.Attempt,
			FailedAt:  time.Now().UTC(),
			FirstSeen: task.EnqueuedAt,
		})
		log.Warn("task exhausted", zap.Error(err), zap.Int("dlq_depth", s.dlq.Len()))
		return
	}

	delay := computeBackoff(task.Attempt, q.backoffBase)
	log.Warn("task failed, retrying", zap.Error(err), zap.Duration("backoff", delay))

	retry := task
	retry.Attempt++
	time.AfterFunc(delay, func() {
		select {
		case q.tasks <- retry:
		case <-s.ctx.Done():
		default:
			// Queue full on re-enqueue; record the loss.
			s.dlq.add(DLQEntry{
				TaskID:    retry.ID,
				QueryID:   retry.QueryID,
				Kind:      retry.Kind,
				Error:     "retry dropped: queue full",
				Attempts:  retry.Attempt,
				FailedAt:  time.Now().UTC(),
				FirstSeen: retry.EnqueuedAt,
			})
		}
	})
}
