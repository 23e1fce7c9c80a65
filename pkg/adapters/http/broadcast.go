package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/docket/internal/logging"
	"github.com/aretw0/docket/pkg/domain"
)

// Event is one server-sent event.
type Event struct {
	Name string
	// Stores lists the store keys the event concerns, for ?watch= filtering.
	Stores []string
	Data   []byte
}

// Broadcaster fans events out to SSE subscribers. Slow subscribers lose
// events rather than blocking the publisher.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	logger      *slog.Logger
}

func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a buffered channel. The returned func unsubscribes
// and closes it.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 10)
	b.subscribers[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, ch)
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Broadcaster) Broadcast(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.logger.Debug("Broadcasting", "event", e.Name, "payload_size", len(e.Data), "subscribers", len(b.subscribers))
	for ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			b.logger.Warn("SSE: Client buffer full, dropping message", "event", e.Name)
		}
	}
}

type mutationEvent struct {
	Store string `json:"store"`
	Error string `json:"error,omitempty"`
}

// Hooks publishes a "mutation" event for every ChangeState call. Install
// it on the Document with document.WithLifecycleHooks.
func (b *Broadcaster) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnMutation: func(_ context.Context, e *domain.MutationEvent) {
			payload := mutationEvent{Store: e.StoreKey}
			if e.Err != nil {
				payload.Error = e.Err.Error()
			}
			data, err := json.Marshal(payload)
			if err != nil {
				return
			}
			b.Broadcast(Event{Name: "mutation", Stores: []string{e.StoreKey}, Data: data})
		},
	}
}
