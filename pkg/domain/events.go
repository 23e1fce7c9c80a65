package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventDispatch EventType = "dispatch"
	EventMutation EventType = "mutation"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// DispatchEvent describes one Document.Dispatch call after it returned.
type DispatchEvent struct {
	EventBase
	ActionType string        `json:"action_type"`
	Handled    bool          `json:"handled"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// MutationEvent describes one Store.ChangeState call after it returned.
// StoreKey is empty for stores that are not attached to a Document.
type MutationEvent struct {
	EventBase
	StoreKey string        `json:"store_key,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for document observability.
// Hooks run synchronously on the dispatching goroutine and must not mutate state.
type LifecycleHooks struct {
	OnDispatch func(context.Context, *DispatchEvent)
	OnMutation func(context.Context, *MutationEvent)
}
