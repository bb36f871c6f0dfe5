// Package events fans query lifecycle updates out to in-process
// subscribers, primarily the websocket handlers streaming progress to
// clients.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is one lifecycle notification for a query.
type Event struct {
	Type      string      `json:"type"`
	QueryID   string      `json:"query_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Event types published by the orchestrator and scorer.
const (
	TypeQueryUpdate        = "query_update"
	TypeResponseReceived   = "response_received"
	TypeComparisonComplete = "comparison_complete"
)

const subscriberBuffer = 16

type subscriber struct {
	id string
	ch chan Event
}

// Notifier is a per-query publish/subscribe hub. Publishing never blocks:
// a subscriber that cannot keep up drops events.
type Notifier struct {
	mu   sync.RWMutex
	subs map[string][]subscriber
}

// NewNotifier creates an empty hub.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string][]subscriber)}
}

// Subscribe registers interest in events for queryID. The returned cancel
// function removes the subscription and closes the channel; it is safe to
// call more than once.
func (n *Notifier) Subscribe(queryID string) (<-chan Event, func()) {
	sub := subscriber{id: uuid.New().String(), ch: make(chan Event, subscriberBuffer)}

	n.mu.Lock()
	n.subs[queryID] = append(n.subs[queryID], sub)
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			list := n.subs[queryID]
			for i, s := range list {
				if s.id == sub.id {
					n.subs[queryID] = append(list[:i], list[i+1:]...)
					break
				}
			}
			if len(n.subs[queryID]) == 0 {
				delete(n.subs, queryID)
			}
			// Closed under the lock so Publish, which sends under the
			// read lock, can never race the close.
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers the event to every subscriber of its query.
func (n *Notifier) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, s := range n.subs[evt.QueryID] {
		select {
		case s.ch <- evt:
		default:
			zap.L().Warn("event dropped for slow subscriber",
				zap.String("query_id", evt.QueryID),
				zap.String("type", evt.Type))
		}
	}
}

// SubscriberCount reports active subscriptions for a query.
func (n *Notifier) SubscriberCount(queryID string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs[queryID])
}
