package scheduler

import (
	"sync"
	"time"
)

// DLQEntry records a task whose retry budget is exhausted.
type DLQEntry struct {
	TaskID    string    `json:"task_id"`
	QueryID   string    `json:"query_id"`
	Kind      TaskKind  `json:"kind"`
	Error     string    `json:"error"`
	Attempts  int       `json:"attempts"`
	FailedAt  time.Time `json:"failed_at"`
	FirstSeen time.Time `json:"first_seen"`
}

// deadLetterQueue is a bounded in-memory buffer of exhausted tasks. When
// full, the oldest entry is dropped to admit the newest.
type deadLetterQueue struct {
	mu      sync.Mutex
	entries []DLQEntry
	cap     int
}

func newDeadLetterQueue(capacity int) *deadLetterQueue {
	if capacity <= 0 {
		capacity = 100
	}
	return &deadLetterQueue{cap: capacity}
}

func (q *deadLetterQueue) add(e DLQEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) >= q.cap {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, e)
}

// Entries returns a snapshot of the queue, oldest first.
func (q *deadLetterQueue) Entries() []DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DLQEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

func (q *deadLetterQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
