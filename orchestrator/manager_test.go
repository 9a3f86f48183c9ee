package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/definitions"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/lifecycle"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/resources"
)

type recordingRegistrar struct {
	mu      sync.Mutex
	mounts  []resources.RouteMount
	removed []string
}

func (r *recordingRegistrar) RegisterRoutes(_ context.Context, mount resources.RouteMount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mounts = append(r.mounts, mount)
	return nil
}

func (r *recordingRegistrar) UnregisterRoutes(_ context.Context, prefix string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, prefix)
	return nil
}

func (r *recordingRegistrar) removedPrefixes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.removed...)
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"global/schemas/base.json":           {Data: []byte(`{"$id": "base"}`)},
		"global/services/logger.yaml":        {Data: []byte("level: info\n")},
		"tenants/acme/config.yaml":           {Data: []byte("name: Acme Corp\nsettings:\n  plan: gold\n")},
		"tenants/acme/schemas/user.json":     {Data: []byte(`{"$id": "user"}`)},
		"tenants/acme/services/billing.yaml": {Data: []byte("rate: 1\n")},
		"tenants/acme/routes/api.yaml":       {Data: []byte("routes:\n  - method: GET\n    path: /hello\n")},
		"tenants/beta/config.json":           {Data: []byte(`{"active": false}`)},
		"tenants/broken/config.yaml":         {Data: []byte("name: [\n")},
		"tenants/gamma/plugins/audit.yaml":   {Data: []byte("enabled: true\n")},
		"packages/remote-tenant/config.toml": {Data: []byte("name = \"Remote\"\n")},
	}
}

func tenantDefinition(maxInstances int) multitenant.EntityDefinition {
	return multitenant.EntityDefinition{
		Type:          "tenant",
		Priority:      10,
		Resources:     multitenant.AllResources(),
		MergeStrategy: multitenant.MergeExtend,
		MaxInstances:  maxInstances,
	}
}

func newTestManager(t *testing.T, fsys fstest.MapFS, maxInstances int, opts ...Option) *Manager {
	t.Helper()
	defs, err := definitions.NewStatic(
		tenantDefinition(maxInstances),
		multitenant.EntityDefinition{Type: "org", IdentificationStrategy: "header", Priority: 1, Disabled: true},
	)
	require.NoError(t, err)
	m, err := New(defs, fsys, opts...)
	require.NoError(t, err)
	return m
}

func TestNewContract(t *testing.T) {
	t.Parallel()

	_, err := New(nil, testFS())
	assert.ErrorIs(t, err, multitenant.ErrContractViolation)

	defs, err := definitions.NewStatic(tenantDefinition(0))
	require.NoError(t, err)
	_, err = New(defs, nil)
	assert.ErrorIs(t, err, multitenant.ErrContractViolation)

	_, err = New(defs, testFS(), WithAdapter(nil))
	assert.ErrorIs(t, err, multitenant.ErrNilAdapter)
}

func TestLoadEntity(t *testing.T) {
	t.Parallel()
	registrar := &recordingRegistrar{}
	m := newTestManager(t, testFS(), 5, WithRouteRegistrar(registrar))
	ctx := context.Background()

	ec, err := m.LoadEntity(ctx, "tenant", "acme")
	require.NoError(t, err)
	require.NotNil(t, ec)

	assert.Equal(t, "Acme Corp", ec.Config.Name)
	assert.Equal(t, "gold", ec.Config.Settings["plan"])
	assert.Equal(t, "local", ec.Adapter)
	assert.Equal(t, []string{"base", "user"}, ec.Schemas)
	assert.Equal(t, []string{"billing", "logger"}, ec.ServiceNames())
	assert.Equal(t, []string{"/tenants/acme"}, ec.Routes)
	require.Len(t, registrar.mounts, 1)
	assert.Equal(t, "/tenants/acme", registrar.mounts[0].Prefix)

	assert.Equal(t, lifecycle.StateActive, m.State("tenant", "acme"))
	got, ok := m.GetEntity("tenant", "acme")
	require.True(t, ok)
	assert.Same(t, ec, got)
	assert.Len(t, m.GetEntitiesByType("tenant"), 1)
	assert.Empty(t, m.GetEntitiesByType("org"))

	stats := m.GetStats()
	assert.Equal(t, 1, stats.Entities.Total)
	assert.Equal(t, int64(1), stats.Entities.History.Loaded)
	assert.Equal(t, 1, stats.States["active"])
	assert.Equal(t, 2, stats.Definitions)
	assert.Positive(t, stats.Cache.Size)

	_, err = m.LoadEntity(ctx, "tenant", "acme")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestLoadEntityInactive(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, testFS(), 5)

	ec, err := m.LoadEntity(context.Background(), "tenant", "beta")
	require.NoError(t, err)
	assert.Nil(t, ec)
	assert.Equal(t, lifecycle.StateUnloaded, m.State("tenant", "beta"))
	_, ok := m.GetEntity("tenant", "beta")
	assert.False(t, ok)
	assert.Zero(t, m.GetStats().Entities.History.Failed)
}

func TestLoadEntityErrors(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, testFS(), 5)
	ctx := context.Background()

	_, err := m.LoadEntity(ctx, "workspace", "w1")
	assert.ErrorIs(t, err, multitenant.ErrUnknownEntityType)

	_, err = m.LoadEntity(ctx, "org", "o1")
	assert.ErrorIs(t, err, multitenant.ErrUnknownEntityType)

	_, err = m.LoadEntity(ctx, "tenant", "bad id")
	assert.ErrorIs(t, err, multitenant.ErrValidation)
	assert.Equal(t, lifecycle.StateUnloaded, m.State("tenant", "bad id"))

	_, err = m.LoadEntity(ctx, "tenant", "ghost")
	assert.ErrorIs(t, err, multitenant.ErrNoAdapter)
	assert.Equal(t, lifecycle.StateError, m.State("tenant", "ghost"))

	_, err = m.LoadEntity(ctx, "tenant", "broken")
	assert.ErrorIs(t, err, multitenant.ErrEntityBuildFailed)
	assert.Equal(t, lifecycle.StateError, m.State("tenant", "broken"))

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats.Entities.History.Failed)
	assert.Zero(t, stats.Entities.Total)
}

func TestLoadEntityFromErrorState(t *testing.T) {
	t.Parallel()
	fsys := testFS()
	m := newTestManager(t, fsys, 5)
	ctx := context.Background()

	_, err := m.LoadEntity(ctx, "tenant", "delta")
	require.Error(t, err)
	require.Equal(t, lifecycle.StateError, m.State("tenant", "delta"))

	fsys["tenants/delta/config.yaml"] = &fstest.MapFile{Data: []byte("name: Delta\n")}
	ec, err := m.LoadEntity(ctx, "tenant", "delta")
	require.NoError(t, err)
	assert.Equal(t, "Delta", ec.Config.Name)
	assert.Equal(t, lifecycle.StateActive, m.State("tenant", "delta"))
}

func TestLoadEntityCapacity(t *testing.T) {
	t.Parallel()
	fsys := testFS()
	fsys["tenants/gamma/routes/api.yaml"] = &fstest.MapFile{Data: []byte("routes:\n  - path: /hello\n")}
	registrar := &recordingRegistrar{}
	m := newTestManager(t, fsys, 1, WithRouteRegistrar(registrar))
	ctx := context.Background()

	_, err := m.LoadEntity(ctx, "tenant", "acme")
	require.NoError(t, err)

	_, err = m.LoadEntity(ctx, "tenant", "gamma")
	require.Error(t, err)
	assert.ErrorIs(t, err, multitenant.ErrCapacityExceeded)
	assert.Contains(t, err.Error(), "tenant")
	assert.Equal(t, lifecycle.StateError, m.State("tenant", "gamma"))
	assert.Len(t, m.GetAllEntities(), 1)
	assert.Equal(t, []string{"/tenants/gamma"}, registrar.removedPrefixes())
	assert.Empty(t, entityCacheKeys(m, "tenant", "gamma"))

	require.NoError(t, m.UnloadEntity(ctx, "tenant", "acme"))
	_, err = m.LoadEntity(ctx, "tenant", "gamma")
	require.NoError(t, err)
	assert.Len(t, registrar.mounts, 3)
}

func TestLoadEntityFlaggedWhileLoading(t *testing.T) {
	t.Parallel()
	registrar := &recordingRegistrar{}
	m := newTestManager(t, testFS(), 5, WithRouteRegistrar(registrar))
	ctx := context.Background()

	flag := multitenant.NewFunctionalObserver("flagger", func(ctx context.Context, _ cloudevents.Event) error {
		_, err := m.Lifecycle().Transition(ctx, "tenant", "acme", lifecycle.TransitionError, nil)
		return err
	})
	require.NoError(t, m.registry.RegisterObserver(flag, multitenant.EventTypeEntityRegistered))

	ec, err := m.LoadEntity(ctx, "tenant", "acme")
	require.Error(t, err)
	assert.Nil(t, ec)
	assert.ErrorIs(t, err, lifecycle.ErrStateChanged)
	assert.Equal(t, lifecycle.StateError, m.State("tenant", "acme"))
	_, ok := m.GetEntity("tenant", "acme")
	assert.False(t, ok)
	assert.Equal(t, []string{"/tenants/acme"}, registrar.removedPrefixes())
	assert.Equal(t, int64(1), m.GetStats().Entities.History.Failed)
}

func TestReloadEntity(t *testing.T) {
	t.Parallel()
	fsys := testFS()
	m := newTestManager(t, fsys, 5)
	ctx := context.Background()

	old, err := m.LoadEntity(ctx, "tenant", "acme")
	require.NoError(t, err)

	fsys["tenants/acme/config.yaml"] = &fstest.MapFile{Data: []byte("name: Acme Renamed\n")}
	fsys["tenants/acme/services/mailer.yaml"] = &fstest.MapFile{Data: []byte("host: smtp\n")}

	ec, err := m.ReloadEntity(ctx, "tenant", "acme")
	require.NoError(t, err)
	assert.NotEqual(t, old.InstanceID, ec.InstanceID)
	assert.Equal(t, "Acme Renamed", ec.Config.Name)
	assert.Equal(t, []string{"billing", "logger", "mailer"}, ec.ServiceNames())

	got, ok := m.GetEntity("tenant", "acme")
	require.True(t, ok)
	assert.Same(t, ec, got)
	assert.Equal(t, lifecycle.StateActive, m.State("tenant", "acme"))
	assert.Equal(t, int64(1), m.GetStats().Entities.History.Reloaded)
}

func TestReloadEntityRollsBack(t *testing.T) {
	t.Parallel()

	tests := map[string]func(fstest.MapFS){
		"broken config":   func(fsys fstest.MapFS) { fsys["tenants/acme/config.yaml"] = &fstest.MapFile{Data: []byte("name: [\n")} },
		"inactive config": func(fsys fstest.MapFS) { fsys["tenants/acme/config.yaml"] = &fstest.MapFile{Data: []byte("active: false\n")} },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			fsys := testFS()
			m := newTestManager(t, fsys, 5)
			ctx := context.Background()

			old, err := m.LoadEntity(ctx, "tenant", "acme")
			require.NoError(t, err)

			mutate(fsys)
			ec, err := m.ReloadEntity(ctx, "tenant", "acme")
			require.Error(t, err)
			assert.Nil(t, ec)
			assert.ErrorIs(t, err, multitenant.ErrReloadRolledBack)
			assert.ErrorIs(t, err, lifecycle.ErrAborted)

			got, ok := m.GetEntity("tenant", "acme")
			require.True(t, ok)
			assert.Same(t, old, got)
			assert.Equal(t, lifecycle.StateActive, m.State("tenant", "acme"))

			stats := m.GetStats().Entities
			assert.Equal(t, int64(1), stats.History.Failed)
			assert.Zero(t, stats.History.Reloaded)
		})
	}
}

func TestReloadEntityRequiresActive(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, testFS(), 5)
	ctx := context.Background()

	_, err := m.ReloadEntity(ctx, "tenant", "acme")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
	assert.ErrorIs(t, err, multitenant.ErrEntity)
	assert.Equal(t, lifecycle.StateUnloaded, m.State("tenant", "acme"))
}

func TestUnloadEntity(t *testing.T) {
	t.Parallel()
	registrar := &recordingRegistrar{}
	m := newTestManager(t, testFS(), 5, WithRouteRegistrar(registrar))
	ctx := context.Background()

	_, err := m.LoadEntity(ctx, "tenant", "acme")
	require.NoError(t, err)
	require.NotEmpty(t, entityCacheKeys(m, "tenant", "acme"))

	require.NoError(t, m.UnloadEntity(ctx, "tenant", "acme"))
	assert.Equal(t, lifecycle.StateUnloaded, m.State("tenant", "acme"))
	_, ok := m.GetEntity("tenant", "acme")
	assert.False(t, ok)
	assert.Empty(t, entityCacheKeys(m, "tenant", "acme"))
	assert.Equal(t, []string{"/tenants/acme"}, registrar.removedPrefixes())

	err = m.UnloadEntity(ctx, "tenant", "acme")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	_, err = m.LoadEntity(ctx, "tenant", "acme")
	assert.NoError(t, err)
	assert.Len(t, registrar.mounts, 2)
}

func TestReloadEntityDropsRemovedRoutes(t *testing.T) {
	t.Parallel()
	fsys := testFS()
	registrar := &recordingRegistrar{}
	m := newTestManager(t, fsys, 5, WithRouteRegistrar(registrar))
	ctx := context.Background()

	_, err := m.LoadEntity(ctx, "tenant", "acme")
	require.NoError(t, err)

	delete(fsys, "tenants/acme/routes/api.yaml")
	ec, err := m.ReloadEntity(ctx, "tenant", "acme")
	require.NoError(t, err)
	assert.Empty(t, ec.Routes)
	assert.Equal(t, []string{"/tenants/acme"}, registrar.removedPrefixes())
}

func entityCacheKeys(m *Manager, entityType, id string) []string {
	var keys []string
	for _, e := range m.Resources().Entries() {
		if strings.Contains(e.Key, ":"+entityType+":"+id+":") {
			keys = append(keys, e.Key)
		}
	}
	return keys
}

func TestSuspendAndResume(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, testFS(), 5)
	ctx := context.Background()

	_, err := m.LoadEntity(ctx, "tenant", "acme")
	require.NoError(t, err)

	assert.ErrorIs(t, m.ResumeEntity(ctx, "tenant", "acme"), lifecycle.ErrInvalidTransition)

	require.NoError(t, m.SuspendEntity(ctx, "tenant", "acme"))
	assert.Equal(t, lifecycle.StateSuspended, m.State("tenant", "acme"))
	stats := m.GetStats().Entities
	assert.Equal(t, 1, stats.Inactive)
	assert.Equal(t, 0, stats.Active)

	_, err = m.ReloadEntity(ctx, "tenant", "acme")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	require.NoError(t, m.ResumeEntity(ctx, "tenant", "acme"))
	assert.Equal(t, lifecycle.StateActive, m.State("tenant", "acme"))
	assert.Equal(t, 1, m.GetStats().Entities.Active)

	require.NoError(t, m.SuspendEntity(ctx, "tenant", "acme"))
	require.NoError(t, m.UnloadEntity(ctx, "tenant", "acme"))
	assert.Empty(t, m.GetAllEntities())
}

func TestLoadAllEntities(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, testFS(), 5)

	summary := m.LoadAllEntities(context.Background())
	assert.Equal(t, []multitenant.EntityRef{{Type: "tenant", ID: "acme"}, {Type: "tenant", ID: "gamma"}}, summary.Loaded)
	assert.Equal(t, []multitenant.EntityRef{{Type: "tenant", ID: "beta"}}, summary.Inactive)
	require.Contains(t, summary.Failed, "tenant:broken")

	all := m.GetAllEntities()
	require.Len(t, all, 2)
	assert.Equal(t, "acme", all[0].ID)
	assert.Equal(t, "gamma", all[1].ID)
	assert.Equal(t, []string{"audit"}, all[1].Plugins)
	assert.Equal(t, int64(1), m.GetStats().Entities.History.Failed)
}

func TestRemoteEntity(t *testing.T) {
	t.Parallel()
	fsys := testFS()
	m := newTestManager(t, fsys, 5, WithPackageFetcher(DirPackageFetcher{FS: fsys, Root: "packages"}))
	ctx := context.Background()

	ec, err := m.LoadEntityFrom(ctx, "tenant", "pkg:remote-tenant", "")
	require.NoError(t, err)
	assert.Equal(t, "remote-tenant", ec.ID)
	assert.Equal(t, "remote", ec.Adapter)
	assert.Equal(t, "Remote", ec.Config.Name)
	assert.Equal(t, "pkg:remote-tenant", ec.Metadata.Source)
	assert.Equal(t, []string{"base"}, ec.Schemas)

	fsys["packages/remote-tenant/config.toml"] = &fstest.MapFile{Data: []byte("name = \"Remote v2\"\n")}
	ec, err = m.ReloadEntity(ctx, "tenant", "remote-tenant")
	require.NoError(t, err)
	assert.Equal(t, "Remote v2", ec.Config.Name)
	assert.Equal(t, "remote", ec.Adapter)
}

func TestIdentifyEntities(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, testFS(), 5)
	req := multitenant.StaticRequest{Host: "acme.example.com:8080", Headers: map[string]string{"X-Org-ID": "o1"}}

	infos := m.IdentifyEntities(req)
	require.Len(t, infos, 1)
	assert.Equal(t, "tenant", infos[0].Type)
	assert.Equal(t, "acme", infos[0].ID)
	assert.Equal(t, 10, infos[0].Priority)

	_, _, ok := m.PrimaryEntity(req)
	assert.False(t, ok)

	_, err := m.LoadEntity(context.Background(), "tenant", "acme")
	require.NoError(t, err)
	ec, info, ok := m.PrimaryEntity(req)
	require.True(t, ok)
	assert.Equal(t, "acme", ec.ID)
	assert.Equal(t, "tenant", info.Type)
}

func TestObserversSeeLifecycleAndRegistryEvents(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, testFS(), 5)

	var mu sync.Mutex
	var types []string
	obs := multitenant.NewFunctionalObserver("recorder", func(_ context.Context, e cloudevents.Event) error {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.Type())
		return nil
	})
	require.NoError(t, m.RegisterObserver(obs))

	_, err := m.LoadEntity(context.Background(), "tenant", "acme")
	require.NoError(t, err)

	mu.Lock()
	assert.Contains(t, types, multitenant.EventTypeEntityTransitionStart)
	assert.Contains(t, types, multitenant.EventTypeEntityRegistered)
	assert.Contains(t, types, multitenant.EventTypeEntityTransitionDone)
	assert.Contains(t, types, multitenant.EventTypeEntityStateChanged)
	mu.Unlock()

	require.NoError(t, m.UnregisterObserver(obs))
}

func TestInvalidateAndPrune(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, testFS(), 5, WithMetrics(prometheus.NewRegistry()), WithRouteRegistrar(&recordingRegistrar{}))
	ctx := context.Background()

	_, err := m.LoadEntity(ctx, "tenant", "acme")
	require.NoError(t, err)

	assert.Equal(t, 4, m.InvalidateEntity("tenant", "acme"))
	assert.Zero(t, m.InvalidateEntity("tenant", "acme"))
	assert.Zero(t, m.PruneCache())
}
