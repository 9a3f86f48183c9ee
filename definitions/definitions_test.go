package definitions

import (
	"os"
	"path/filepath"
	"testing"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlDefs = `
entities:
  tenant:
    identificationStrategy: subdomain
    priority: 10
    mergeStrategy: extend
    maxInstances: 5
  org:
    identificationStrategy: header
    resources:
      schemas: true
      services: true
  workspace:
    identificationStrategy: path
    parent: tenant
    routePrefix: /ws/{entityId}
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	s, err := Load("entities.yaml", []byte(yamlDefs))
	require.NoError(t, err)

	assert.Equal(t, []string{"org", "tenant", "workspace"}, s.Types())

	tenant, ok := s.Definition("tenant")
	require.True(t, ok)
	assert.Equal(t, 10, tenant.Priority)
	assert.Equal(t, 5, tenant.MaxInstances)
	assert.Equal(t, multitenant.MergeExtend, tenant.MergeStrategy)
	assert.Equal(t, "tenants", tenant.BasePath)
	assert.Equal(t, multitenant.AllResources(), tenant.Resources)

	org, _ := s.Definition("org")
	assert.Equal(t, multitenant.ResourceFlags{Schemas: true, Services: true}, org.Resources)
	assert.Equal(t, multitenant.DefaultPriority, org.Priority)
	assert.Equal(t, multitenant.MergeOverride, org.MergeStrategy)

	ws, _ := s.Definition("workspace")
	assert.Equal(t, "tenant", ws.Parent)
	assert.Equal(t, "/ws/w1", ws.ResolveRoutePrefix("w1"))

	_, ok = s.Definition("region")
	assert.False(t, ok)
}

func TestLoadJSONAndTOML(t *testing.T) {
	t.Parallel()

	jsonDefs := `{"entities": {"tenant": {"identificationStrategy": "query", "priority": 3}}}`
	s, err := Load("entities.json", []byte(jsonDefs))
	require.NoError(t, err)
	def, ok := s.Definition("tenant")
	require.True(t, ok)
	assert.Equal(t, "query", def.IdentificationStrategy)
	assert.Equal(t, 3, def.Priority)

	tomlDefs := `
[entities.tenant]
identificationStrategy = "composite"

[[entities.tenant.identification.strategies]]
type = "header"
priority = 1
header = "X-Org"

[[entities.tenant.identification.strategies]]
type = "path"
priority = 2
`
	s, err = Load("entities.toml", []byte(tomlDefs))
	require.NoError(t, err)
	def, _ = s.Definition("tenant")
	require.Len(t, def.Identification.Strategies, 2)
	assert.Equal(t, "X-Org", def.Identification.Strategies[0].Header)
	assert.Equal(t, 2, def.Identification.Strategies[1].Priority)
}

func TestLoadFileWithEnvOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "entities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlDefs), 0o600))

	env := map[string]string{
		"MT_TENANT_PRIORITY":       "1",
		"MT_TENANT_MERGE_STRATEGY": "isolate",
		"MT_ORG_DISABLED":          "true",
		"MT_ORG_LOAD_PLUGINS":      "true",
	}
	s, err := LoadFile(path, WithEnvOverrides("MT"), WithLookup(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	require.NoError(t, err)

	tenant, _ := s.Definition("tenant")
	assert.Equal(t, 1, tenant.Priority)
	assert.Equal(t, multitenant.MergeIsolate, tenant.MergeStrategy)

	org, _ := s.Definition("org")
	assert.True(t, org.Disabled)
	assert.True(t, org.Resources.Plugins)
}

func TestNewStaticValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		defs []multitenant.EntityDefinition
		err  error
	}{
		{name: "empty type", defs: []multitenant.EntityDefinition{{}}, err: multitenant.ErrValidation},
		{name: "duplicate", defs: []multitenant.EntityDefinition{{Type: "a"}, {Type: "a"}}, err: ErrDuplicateType},
		{name: "bad merge", defs: []multitenant.EntityDefinition{{Type: "a", MergeStrategy: "mix"}}, err: multitenant.ErrUnknownMergeStrategy},
		{name: "unknown parent", defs: []multitenant.EntityDefinition{{Type: "a", Parent: "b"}}, err: ErrUnknownParent},
		{name: "cycle", defs: []multitenant.EntityDefinition{{Type: "a", Parent: "b"}, {Type: "b", Parent: "a"}}, err: ErrParentCycle},
		{name: "negative", defs: []multitenant.EntityDefinition{{Type: "a", MaxInstances: -1}}, err: multitenant.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewStatic(tt.defs...)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestStaticKeepsOrderAndCopies(t *testing.T) {
	t.Parallel()

	s, err := NewStatic(
		multitenant.EntityDefinition{Type: "zeta"},
		multitenant.EntityDefinition{Type: "alpha"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha"}, s.Types())

	defs := s.Definitions()
	defs[0].Priority = 1
	again, _ := s.Definition("zeta")
	assert.Equal(t, multitenant.DefaultPriority, again.Priority)
}

func TestLoadRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := Load("entities.yaml", []byte("entities: [1, 2"))
	assert.ErrorIs(t, err, multitenant.ErrConfiguration)

	_, err = Load("entities.yaml", []byte("entities:\n  tenant:\n    type: org\n"))
	assert.ErrorIs(t, err, multitenant.ErrConfiguration)
}
