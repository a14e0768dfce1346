// Package events implements the typed publish/subscribe channel that carries
// sync lifecycle events to presentation layers (CLI output, log panels).
//
// Publishing is synchronous: handlers run in registration order on the
// publisher's goroutine, so event ordering matches operation ordering.
package events

import (
	"sync"
	"time"
)

// Type identifies an event kind on the bus.
type Type string

// Lifecycle event types emitted by the engine and its collaborators.
const (
	SyncStart    Type = "sync:start"
	SyncComplete Type = "sync:complete"
	SyncError    Type = "sync:error"

	GitPullStart    Type = "git:pull:start"
	GitPullComplete Type = "git:pull:complete"
	GitOffline      Type = "git:offline"

	ToolDeployStart    Type = "tool:deploy:start"
	ToolDeployComplete Type = "tool:deploy:complete"
	ToolDeploySkip     Type = "tool:deploy:skip"
	ToolDeployError    Type = "tool:deploy:error"
	ToolValidateError  Type = "tool:validate:error"

	ConflictDetected Type = "conflict:detected"

	LockAcquired Type = "lock:acquired"
	LockReleased Type = "lock:released"
)

// Wildcard subscribes a handler to every event type.
const Wildcard Type = "*"

// Event is one lifecycle notification. Data carries event-specific fields;
// consumers must not assume keys beyond what each event type documents.
type Event struct {
	Type Type
	Time time.Time
	Data map[string]any
}

// Handler receives published events.
type Handler func(Event)

// Token identifies a subscription for later removal.
type Token int

type subscription struct {
	token   Token
	handler Handler
}

// Bus is a synchronous publish/subscribe dispatcher. The zero value is not
// usable; construct with NewBus.
type Bus struct {
	mu     sync.Mutex
	next   Token
	topics map[Type][]subscription
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{topics: make(map[Type][]subscription)}
}

// Subscribe registers a handler for one event type and returns a token
// that deterministically stops delivery when passed to Unsubscribe.
func (b *Bus) Subscribe(t Type, h Handler) Token {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	b.topics[t] = append(b.topics[t], subscription{token: b.next, handler: h})
	return b.next
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) Token {
	return b.Subscribe(Wildcard, h)
}

// Unsubscribe removes the subscription identified by token. Unknown tokens
// are ignored.
func (b *Bus) Unsubscribe(token Token) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for t, subs := range b.topics {
		for i, s := range subs {
			if s.token == token {
				b.topics[t] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers an event to every handler subscribed to its type, then
// to every wildcard handler. The event timestamp is set here if unset.
func (b *Bus) Publish(t Type, data map[string]any) {
	ev := Event{Type: t, Time: time.Now(), Data: data}

	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.topics[t])+len(b.topics[Wildcard]))
	for _, s := range b.topics[t] {
		handlers = append(handlers, s.handler)
	}
	for _, s := range b.topics[Wildcard] {
		handlers = append(handlers, s.handler)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}
