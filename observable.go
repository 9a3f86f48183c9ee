package multitenant

import (
	"context"
	"sort"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// observerRegistration holds information about a registered observer
type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool
	registeredAt time.Time
}

// Observable is a reusable Subject implementation. Components embed it to
// emit CloudEvents to registered observers.
//
// Delivery is synchronous and in registration-id order so observers see
// state changes in the order they happened. Observer errors and panics are
// logged and never propagate to the emitter.
type Observable struct {
	source    string
	logger    Logger
	mu        sync.RWMutex
	observers map[string]*observerRegistration
}

var _ Subject = (*Observable)(nil)

// NewObservable creates an Observable emitting events with the given source.
func NewObservable(source string, logger Logger) *Observable {
	return &Observable{
		source:    source,
		logger:    LoggerOrNop(logger),
		observers: make(map[string]*observerRegistration),
	}
}

// RegisterObserver adds an observer. If eventTypes is empty, the observer
// receives all events.
func (o *Observable) RegisterObserver(observer Observer, eventTypes ...string) error {
	if observer == nil {
		return ErrNilObserver
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	eventTypeMap := make(map[string]bool, len(eventTypes))
	for _, eventType := range eventTypes {
		eventTypeMap[eventType] = true
	}

	o.observers[observer.ObserverID()] = &observerRegistration{
		observer:     observer,
		eventTypes:   eventTypeMap,
		registeredAt: time.Now(),
	}

	o.logger.Debug("Observer registered", "observerID", observer.ObserverID(), "eventTypes", eventTypes)
	return nil
}

// UnregisterObserver removes an observer. It is idempotent.
func (o *Observable) UnregisterObserver(observer Observer) error {
	if observer == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.observers[observer.ObserverID()]; exists {
		delete(o.observers, observer.ObserverID())
		o.logger.Debug("Observer unregistered", "observerID", observer.ObserverID())
	}
	return nil
}

// NotifyObservers delivers event to every interested observer.
func (o *Observable) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}
	if err := ValidateCloudEvent(event); err != nil {
		o.logger.Error("Invalid CloudEvent", "eventType", event.Type(), "error", err)
		return err
	}

	for _, registration := range o.snapshot() {
		if len(registration.eventTypes) > 0 && !registration.eventTypes[event.Type()] {
			continue
		}
		o.deliver(ctx, registration.observer, event)
	}
	return nil
}

// Emit builds a CloudEvent and notifies observers. Failures are logged.
func (o *Observable) Emit(ctx context.Context, eventType string, data any, metadata map[string]any) {
	if !o.hasObservers() {
		return
	}
	event := NewCloudEvent(eventType, o.source, data, metadata)
	if err := o.NotifyObservers(ctx, event); err != nil {
		o.logger.Error("Failed to notify observers", "event", eventType, "error", err)
	}
}

// GetObservers returns information about registered observers.
func (o *Observable) GetObservers() []ObserverInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()

	info := make([]ObserverInfo, 0, len(o.observers))
	for id, registration := range o.observers {
		eventTypes := make([]string, 0, len(registration.eventTypes))
		for eventType := range registration.eventTypes {
			eventTypes = append(eventTypes, eventType)
		}
		sort.Strings(eventTypes)
		info = append(info, ObserverInfo{
			ID:           id,
			EventTypes:   eventTypes,
			RegisteredAt: registration.registeredAt,
		})
	}
	sort.Slice(info, func(i, j int) bool { return info[i].ID < info[j].ID })
	return info
}

func (o *Observable) hasObservers() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.observers) > 0
}

func (o *Observable) snapshot() []*observerRegistration {
	o.mu.RLock()
	defer o.mu.RUnlock()

	ids := make([]string, 0, len(o.observers))
	for id := range o.observers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	regs := make([]*observerRegistration, 0, len(ids))
	for _, id := range ids {
		regs = append(regs, o.observers[id])
	}
	return regs
}

func (o *Observable) deliver(ctx context.Context, observer Observer, event cloudevents.Event) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Observer panicked", "observerID", observer.ObserverID(), "event", event.Type(), "panic", r)
		}
	}()
	if err := observer.OnEvent(ctx, event); err != nil {
		o.logger.Error("Observer error", "observerID", observer.ObserverID(), "event", event.Type(), "error", err)
	}
}
