package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
)

// EventSource is the CloudEvents source of lifecycle events.
const EventSource = "multitenant.lifecycle"

// Handler performs the work of a transition. Returning an error moves the
// entity to the error state, unless the error wraps ErrAborted.
type Handler func(ctx context.Context) error

// StateChange describes one state change of one entity.
type StateChange struct {
	Type       string         `json:"entityType"`
	ID         string         `json:"entityId"`
	From       State          `json:"from"`
	To         State          `json:"to"`
	Transition TransitionName `json:"transition"`
}

// Listener is called synchronously after a state change.
type Listener func(change StateChange)

// Result is the outcome of a transition whose guard passed.
type Result struct {
	Type       string         `json:"entityType"`
	ID         string         `json:"entityId"`
	Transition TransitionName `json:"transition"`
	From       State          `json:"from"`
	To         State          `json:"to"`
	Success    bool           `json:"success"`
	Aborted    bool           `json:"aborted,omitempty"`
	Err        error          `json:"-"`
	Duration   time.Duration  `json:"duration"`
}

// ErrorMessage returns the handler error message, or "".
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type listenerEntry struct {
	id int
	fn Listener
}

// Manager holds the state of every entity instance and runs transitions.
// Entities never seen are in StateUnloaded.
//
// The guard check and the switch to the intermediate state happen under one
// lock, so two concurrent transitions of the same entity cannot both pass
// the guard. Handlers run outside the lock.
type Manager struct {
	*multitenant.Observable

	mu          sync.Mutex
	states      map[string]State
	listeners   map[string][]listenerEntry
	nextID      int
	transitions map[TransitionName]Transition
	logger      multitenant.Logger
}

// NewManager creates a Manager with the standard transition table.
func NewManager(logger multitenant.Logger) *Manager {
	logger = multitenant.LoggerOrNop(logger)
	table := make(map[TransitionName]Transition)
	for _, t := range Transitions() {
		table[t.Name] = t
	}
	return &Manager{
		Observable:  multitenant.NewObservable(EventSource, logger),
		states:      make(map[string]State),
		listeners:   make(map[string][]listenerEntry),
		transitions: table,
		logger:      logger,
	}
}

// State returns the current state of an entity.
func (m *Manager) State(entityType, id string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[multitenant.EntityKey(entityType, id)]
}

// States returns a snapshot of every tracked entity's state keyed by "type:id".
func (m *Manager) States() map[string]State {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]State, len(m.states))
	for k, v := range m.states {
		out[k] = v
	}
	return out
}

// Counts returns how many tracked entities are in each state.
func (m *Manager) Counts() map[State]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[State]int)
	for _, s := range m.states {
		out[s]++
	}
	return out
}

// CanTransition reports whether the named transition may start now.
func (m *Manager) CanTransition(entityType, id string, name TransitionName) bool {
	t, ok := m.transitions[name]
	if !ok {
		return false
	}
	return t.Allows(m.State(entityType, id))
}

// AvailableTransitions lists the transitions allowed from the entity's
// current state, in table order.
func (m *Manager) AvailableTransitions(entityType, id string) []TransitionName {
	current := m.State(entityType, id)
	names := make([]TransitionName, 0, 3)
	for _, t := range Transitions() {
		if t.Allows(current) {
			names = append(names, t.Name)
		}
	}
	return names
}

// OnStateChange registers a listener for one entity and returns a function
// that removes it.
func (m *Manager) OnStateChange(entityType, id string, fn Listener) (remove func()) {
	key := multitenant.EntityKey(entityType, id)

	m.mu.Lock()
	m.nextID++
	entryID := m.nextID
	m.listeners[key] = append(m.listeners[key], listenerEntry{id: entryID, fn: fn})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		entries := m.listeners[key]
		for i, e := range entries {
			if e.id == entryID {
				m.listeners[key] = append(entries[:i:i], entries[i+1:]...)
				break
			}
		}
		if len(m.listeners[key]) == 0 {
			delete(m.listeners, key)
		}
	}
}

// Forget drops the state and listeners of an entity, returning it to
// StateUnloaded. Entities in a transient state are kept.
func (m *Manager) Forget(entityType, id string) bool {
	key := multitenant.EntityKey(entityType, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.states[key] {
	case StateLoading, StateUnloading:
		return false
	}
	delete(m.states, key)
	delete(m.listeners, key)
	return true
}

// Transition runs the named transition for an entity.
//
// It returns an error only when the transition does not exist or the
// entity's current state is not an allowed source state; in that case
// nothing is changed. Otherwise the intermediate state is entered, handler
// runs, and the outcome is reported in Result:
//   - success: the final state (if any) is entered
//   - error wrapping ErrAborted: the previous state is restored
//   - any other error or a panic: the error state is entered
//
// The outcome state is only entered while the entity is still in the
// intermediate state. When another transition moved it meanwhile, that
// state is kept and a successful handler is reported as failed with
// ErrStateChanged.
func (m *Manager) Transition(ctx context.Context, entityType, id string, name TransitionName, handler Handler) (Result, error) {
	t, ok := m.transitions[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", multitenant.ErrUnknownTransition, name)
	}
	key := multitenant.EntityKey(entityType, id)

	m.mu.Lock()
	from := m.states[key]
	if !t.Allows(from) {
		m.mu.Unlock()
		return Result{}, fmt.Errorf("%w: cannot %s %s %s in state %s", ErrInvalidTransition, name, entityType, id, from)
	}
	m.states[key] = t.Intermediate
	m.mu.Unlock()

	m.changed(ctx, StateChange{Type: entityType, ID: id, From: from, To: t.Intermediate, Transition: name})
	m.Emit(ctx, multitenant.EventTypeEntityTransitionStart, map[string]any{
		"entityType": entityType, "entityId": id, "transition": name, "from": from.String(),
	}, eventMeta(entityType, id))

	start := time.Now()
	err := runHandler(ctx, handler)
	result := Result{
		Type:       entityType,
		ID:         id,
		Transition: name,
		From:       from,
		Duration:   time.Since(start),
	}

	switch {
	case err == nil:
		result.Success = true
		result.To = t.Target()
	case errors.Is(err, ErrAborted):
		result.Aborted = true
		result.Err = err
		result.To = from
	default:
		result.Err = err
		result.To = StateError
	}

	change := StateChange{Type: entityType, ID: id, From: t.Intermediate, To: result.To, Transition: name}
	if current, ok := m.swap(ctx, key, change); !ok {
		m.logger.Warn("Entity state changed during transition, keeping it", "entityType", entityType, "entityID", id,
			"transition", name, "expected", t.Intermediate, "state", current, "wanted", result.To)
		if result.Success {
			result.Success = false
			result.Err = fmt.Errorf("%w: %s %s is %s, wanted %s", ErrStateChanged, entityType, id, current, result.To)
		}
		result.To = current
	}

	data := map[string]any{
		"entityType": entityType, "entityId": id, "transition": name,
		"from": from.String(), "to": result.To.String(), "durationMs": result.Duration.Milliseconds(),
	}
	if result.Success {
		m.logger.Debug("Lifecycle transition completed", "entityType", entityType, "entityID", id, "transition", name, "state", result.To)
		m.Emit(ctx, multitenant.EventTypeEntityTransitionDone, data, eventMeta(entityType, id))
	} else {
		data["error"] = result.ErrorMessage()
		if result.Aborted {
			m.logger.Debug("Lifecycle transition aborted", "entityType", entityType, "entityID", id, "transition", name, "error", result.Err)
		} else {
			m.logger.Error("Lifecycle transition failed", "entityType", entityType, "entityID", id, "transition", name, "error", result.Err)
		}
		m.Emit(ctx, multitenant.EventTypeEntityTransitionFail, data, eventMeta(entityType, id))
	}
	return result, nil
}

// swap moves key from change.From to change.To. When the state is no
// longer change.From it is left alone and swap returns it with false.
func (m *Manager) swap(ctx context.Context, key string, change StateChange) (State, bool) {
	m.mu.Lock()
	current := m.states[key]
	if current != change.From {
		m.mu.Unlock()
		return current, false
	}
	if change.To == change.From {
		m.mu.Unlock()
		return current, true
	}
	m.states[key] = change.To
	m.mu.Unlock()

	m.changed(ctx, change)
	return change.To, true
}

// changed notifies listeners and observers of a state change.
func (m *Manager) changed(ctx context.Context, change StateChange) {
	key := multitenant.EntityKey(change.Type, change.ID)

	m.mu.Lock()
	entries := append([]listenerEntry(nil), m.listeners[key]...)
	m.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	for _, e := range entries {
		m.callListener(e.fn, change)
	}

	m.Emit(ctx, multitenant.EventTypeEntityStateChanged, change, eventMeta(change.Type, change.ID))
}

func (m *Manager) callListener(fn Listener, change StateChange) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("State change listener panicked", "entityType", change.Type, "entityID", change.ID, "panic", r)
		}
	}()
	fn(change)
}

func runHandler(ctx context.Context, handler Handler) (err error) {
	if handler == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return handler(ctx)
}

// eventMeta returns CloudEvents extension attributes. Extension names must
// be lower-case alphanumeric.
func eventMeta(entityType, id string) map[string]any {
	return map[string]any{"entitytype": entityType, "entityid": id}
}
