package multitenant

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Observer is notified of entity lifecycle events. Events follow the
// CloudEvents specification.
type Observer interface {
	// OnEvent is called synchronously for each event the observer is
	// subscribed to. Observers should return quickly.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// Subject is implemented by components that emit events.
type Subject interface {
	// RegisterObserver adds an observer. When eventTypes is empty the
	// observer receives all events.
	RegisterObserver(observer Observer, eventTypes ...string) error

	// UnregisterObserver removes an observer. Unknown observers are ignored.
	UnregisterObserver(observer Observer) error

	// NotifyObservers delivers event to every interested observer.
	NotifyObservers(ctx context.Context, event cloudevents.Event) error

	// GetObservers describes the registered observers.
	GetObservers() []ObserverInfo
}

// ObserverInfo describes a registered observer.
type ObserverInfo struct {
	ID           string    `json:"id"`
	EventTypes   []string  `json:"eventTypes"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Event types emitted by the entity core, in reverse domain notation.
const (
	EventTypeEntityStateChanged    = "com.multitenant.entity.state.changed"
	EventTypeEntityTransitionStart = "com.multitenant.entity.transition.started"
	EventTypeEntityTransitionDone  = "com.multitenant.entity.transition.completed"
	EventTypeEntityTransitionFail  = "com.multitenant.entity.transition.failed"
	EventTypeEntityRegistered      = "com.multitenant.entity.registered"
	EventTypeEntityUnregistered    = "com.multitenant.entity.unregistered"
)

// FunctionalObserver adapts a function to the Observer interface.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer backed by handler.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{
		id:      id,
		handler: handler,
	}
}

// OnEvent calls the handler function.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID returns the observer id.
func (f *FunctionalObserver) ObserverID() string {
	return f.id
}
