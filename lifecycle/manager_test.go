package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func TestStateNames(t *testing.T) {
	t.Parallel()

	for _, s := range AllStates() {
		parsed, found := ParseState(s.String())
		require.True(t, found, s.String())
		assert.Equal(t, s, parsed)
	}
	assert.Equal(t, "state(42)", State(42).String())

	var s State
	require.NoError(t, s.UnmarshalText([]byte("suspended")))
	assert.Equal(t, StateSuspended, s)
	assert.Error(t, s.UnmarshalText([]byte("sleeping")))

	assert.True(t, StateActive.Live())
	assert.True(t, StateSuspended.Live())
	assert.False(t, StateError.Live())
}

func TestTransitionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from    State
		allowed []TransitionName
	}{
		{from: StateUnloaded, allowed: []TransitionName{TransitionLoad, TransitionError}},
		{from: StateLoading, allowed: []TransitionName{TransitionError}},
		{from: StateActive, allowed: []TransitionName{TransitionSuspend, TransitionReload, TransitionUnload, TransitionError}},
		{from: StateSuspended, allowed: []TransitionName{TransitionResume, TransitionUnload, TransitionError}},
		{from: StateError, allowed: []TransitionName{TransitionLoad, TransitionUnload}},
		{from: StateUnloading, allowed: []TransitionName{TransitionError}},
	}

	for _, tt := range tests {
		var got []TransitionName
		for _, tr := range Transitions() {
			if tr.Allows(tt.from) {
				got = append(got, tr.Name)
			}
		}
		assert.Equal(t, tt.allowed, got, tt.from.String())
	}
}

func TestFullLifecycle(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)
	ctx := context.Background()

	var changes []StateChange
	m.OnStateChange("tenant", "t1", func(c StateChange) { changes = append(changes, c) })

	steps := []struct {
		name TransitionName
		want State
	}{
		{TransitionLoad, StateActive},
		{TransitionSuspend, StateSuspended},
		{TransitionResume, StateActive},
		{TransitionReload, StateActive},
		{TransitionUnload, StateUnloaded},
	}
	for _, step := range steps {
		res, err := m.Transition(ctx, "tenant", "t1", step.name, ok)
		require.NoError(t, err, step.name)
		assert.True(t, res.Success, step.name)
		assert.Equal(t, step.want, res.To, step.name)
		assert.Equal(t, step.want, m.State("tenant", "t1"), step.name)
	}

	want := []StateChange{
		{Type: "tenant", ID: "t1", From: StateUnloaded, To: StateLoading, Transition: TransitionLoad},
		{Type: "tenant", ID: "t1", From: StateLoading, To: StateActive, Transition: TransitionLoad},
		{Type: "tenant", ID: "t1", From: StateActive, To: StateSuspended, Transition: TransitionSuspend},
		{Type: "tenant", ID: "t1", From: StateSuspended, To: StateActive, Transition: TransitionResume},
		{Type: "tenant", ID: "t1", From: StateActive, To: StateLoading, Transition: TransitionReload},
		{Type: "tenant", ID: "t1", From: StateLoading, To: StateActive, Transition: TransitionReload},
		{Type: "tenant", ID: "t1", From: StateActive, To: StateUnloading, Transition: TransitionUnload},
		{Type: "tenant", ID: "t1", From: StateUnloading, To: StateUnloaded, Transition: TransitionUnload},
	}
	assert.Equal(t, want, changes)
}

func TestHandlerFailureEntersErrorState(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)

	res, err := m.Transition(context.Background(), "tenant", "t1", TransitionLoad, func(context.Context) error {
		return errors.New("config file is corrupt")
	})

	require.NoError(t, err, "handler failures are reported in the result")
	assert.False(t, res.Success)
	assert.Equal(t, "config file is corrupt", res.ErrorMessage())
	assert.Equal(t, StateError, res.To)
	assert.Equal(t, StateError, m.State("tenant", "t1"))

	res, err = m.Transition(context.Background(), "tenant", "t1", TransitionLoad, ok)
	require.NoError(t, err, "load is allowed from error")
	assert.True(t, res.Success)
}

func TestGuardRejectsWithoutMutation(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)

	called := false
	notified := false
	m.OnStateChange("tenant", "t1", func(StateChange) { notified = true })

	_, err := m.Transition(context.Background(), "tenant", "t1", TransitionResume, func(context.Context) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, err, multitenant.ErrEntity)
	assert.Contains(t, err.Error(), "unloaded")
	assert.False(t, called)
	assert.False(t, notified)
	assert.Equal(t, StateUnloaded, m.State("tenant", "t1"))
	assert.Empty(t, m.States())
}

func TestUnknownTransition(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)

	_, err := m.Transition(context.Background(), "tenant", "t1", "hibernate", ok)
	assert.ErrorIs(t, err, multitenant.ErrConfiguration)
	assert.False(t, m.CanTransition("tenant", "t1", "hibernate"))
}

func TestAbortRestoresPreviousState(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)
	ctx := context.Background()

	res, err := m.Transition(ctx, "tenant", "t1", TransitionLoad, func(context.Context) error {
		return Abort(errors.New("entity is inactive"))
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.Aborted)
	assert.Equal(t, StateUnloaded, m.State("tenant", "t1"))

	_, err = m.Transition(ctx, "tenant", "t1", TransitionLoad, ok)
	require.NoError(t, err)
	res, err = m.Transition(ctx, "tenant", "t1", TransitionReload, func(context.Context) error { return Abort(nil) })
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.Equal(t, StateActive, m.State("tenant", "t1"))
}

func TestErrorDuringTransitionIsKept(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		name    TransitionName
		prepare []TransitionName
		handler func(error) error
	}{
		"load succeeds":  {name: TransitionLoad, handler: func(error) error { return nil }},
		"load aborts":    {name: TransitionLoad, handler: func(error) error { return Abort(nil) }},
		"unload fails":   {name: TransitionUnload, prepare: []TransitionName{TransitionLoad}, handler: func(err error) error { return err }},
		"suspend passes": {name: TransitionSuspend, prepare: []TransitionName{TransitionLoad}, handler: func(error) error { return nil }},
	}

	for desc, tt := range tests {
		t.Run(desc, func(t *testing.T) {
			t.Parallel()
			m := NewManager(nil)
			ctx := context.Background()
			for _, name := range tt.prepare {
				_, err := m.Transition(ctx, "tenant", "t1", name, ok)
				require.NoError(t, err)
			}

			res, err := m.Transition(ctx, "tenant", "t1", tt.name, func(ctx context.Context) error {
				flagged, err := m.Transition(ctx, "tenant", "t1", TransitionError, nil)
				require.NoError(t, err)
				require.True(t, flagged.Success)
				return tt.handler(errors.New("handler failed"))
			})
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, StateError, res.To)
			assert.Equal(t, StateError, m.State("tenant", "t1"))
		})
	}

	m := NewManager(nil)
	res, err := m.Transition(context.Background(), "tenant", "t1", TransitionLoad, func(ctx context.Context) error {
		_, err := m.Transition(ctx, "tenant", "t1", TransitionError, nil)
		return err
	})
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, ErrStateChanged)
	assert.ErrorIs(t, res.Err, multitenant.ErrEntity)
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)

	res, err := m.Transition(context.Background(), "tenant", "t1", TransitionLoad, func(context.Context) error {
		panic("nil map")
	})
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, ErrHandlerPanic)
	assert.Equal(t, StateError, m.State("tenant", "t1"))
}

func TestConcurrentTransitionsSerializeOnGuard(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = m.Transition(ctx, "tenant", "t1", TransitionLoad, func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered
	assert.Equal(t, StateLoading, m.State("tenant", "t1"))
	_, err := m.Transition(ctx, "tenant", "t1", TransitionLoad, ok)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.False(t, m.Forget("tenant", "t1"), "transient states are kept")

	close(release)
	wg.Wait()
	assert.Equal(t, StateActive, m.State("tenant", "t1"))
}

func TestAvailableTransitionsAndCounts(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)
	ctx := context.Background()

	assert.Equal(t, []TransitionName{TransitionLoad, TransitionError}, m.AvailableTransitions("tenant", "t1"))

	_, err := m.Transition(ctx, "tenant", "t1", TransitionLoad, ok)
	require.NoError(t, err)
	_, err = m.Transition(ctx, "tenant", "t2", TransitionLoad, ok)
	require.NoError(t, err)
	_, err = m.Transition(ctx, "tenant", "t2", TransitionSuspend, ok)
	require.NoError(t, err)

	assert.True(t, m.CanTransition("tenant", "t1", TransitionReload))
	assert.Equal(t, map[State]int{StateActive: 1, StateSuspended: 1}, m.Counts())
	assert.Equal(t, map[string]State{"tenant:t1": StateActive, "tenant:t2": StateSuspended}, m.States())

	assert.True(t, m.Forget("tenant", "t2"))
	assert.Equal(t, StateUnloaded, m.State("tenant", "t2"))
}

func TestListenerRemoval(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)

	count := 0
	remove := m.OnStateChange("tenant", "t1", func(StateChange) { count++ })
	m.OnStateChange("tenant", "t1", func(StateChange) { panic("listener bug") })

	_, err := m.Transition(context.Background(), "tenant", "t1", TransitionLoad, ok)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	remove()
	_, err = m.Transition(context.Background(), "tenant", "t1", TransitionSuspend, ok)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestObserversReceiveCloudEvents(t *testing.T) {
	t.Parallel()
	m := NewManager(nil)

	var mu sync.Mutex
	var types []string
	var last cloudevents.Event
	obs := multitenant.NewFunctionalObserver("recorder", func(_ context.Context, e cloudevents.Event) error {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.Type())
		last = e
		return nil
	})
	require.NoError(t, m.RegisterObserver(obs))

	_, err := m.Transition(context.Background(), "tenant", "t1", TransitionLoad, ok)
	require.NoError(t, err)

	assert.Equal(t, []string{
		multitenant.EventTypeEntityStateChanged,
		multitenant.EventTypeEntityTransitionStart,
		multitenant.EventTypeEntityStateChanged,
		multitenant.EventTypeEntityTransitionDone,
	}, types)
	assert.Equal(t, EventSource, last.Source())
	assert.Equal(t, "t1", last.Extensions()["entityid"])

	var data map[string]any
	require.NoError(t, last.DataAs(&data))
	assert.Equal(t, "active", data["to"])
}
