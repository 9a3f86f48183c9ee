package identification

import (
	"errors"
	"testing"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	debugs []string
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.debugs = append(l.debugs, msg) }
func (l *recordingLogger) Info(msg string, args ...any)  {}
func (l *recordingLogger) Warn(msg string, args ...any)  {}
func (l *recordingLogger) Error(msg string, args ...any) {}

func TestManagerBuiltins(t *testing.T) {
	t.Parallel()
	m := NewManager(nil, nil)

	assert.Equal(t, []string{"composite", "header", "path", "query", "subdomain"}, m.Names())

	for _, name := range m.Names() {
		err := m.Unregister(name)
		assert.ErrorIs(t, err, multitenant.ErrBuiltinStrategy, name)
		err = m.Register(name, NewPath())
		assert.ErrorIs(t, err, multitenant.ErrBuiltinStrategy, name)
	}
}

func TestManagerRegisterValidation(t *testing.T) {
	t.Parallel()
	m := NewManager(nil, nil)

	assert.ErrorIs(t, m.Register("", NewPath()), multitenant.ErrEmptyName)
	err := m.Register("custom", nil)
	assert.ErrorIs(t, err, multitenant.ErrContractViolation)

	require.NoError(t, m.Register("custom", NewPath()))
	_, ok := m.Strategy("custom")
	assert.True(t, ok)

	require.NoError(t, m.Unregister("custom"))
	assert.ErrorIs(t, m.Unregister("custom"), multitenant.ErrUnknownStrategy)
}

func TestManagerExtractEntityInfoPriorityOrder(t *testing.T) {
	t.Parallel()
	m := NewManager(nil, nil)

	defs := []multitenant.EntityDefinition{
		{Type: "workspace", IdentificationStrategy: StrategyQuery, Priority: 20},
		{Type: "tenant", IdentificationStrategy: StrategySubdomain, Priority: 10},
		{Type: "region", IdentificationStrategy: StrategyHeader},
		{Type: "org", IdentificationStrategy: StrategyQuery, Priority: 20},
	}
	req := multitenant.StaticRequest{
		Host:        "acme.example.com",
		Headers:     map[string]string{"X-Region-ID": "eu"},
		QueryParams: map[string]string{"workspace": "ws1", "org": "o1"},
	}

	matches := m.ExtractEntityInfo(req, defs)
	require.Len(t, matches, 4)

	got := make([]string, 0, len(matches))
	for _, e := range matches {
		got = append(got, e.Type+"="+e.ID)
	}
	assert.Equal(t, []string{"tenant=acme", "workspace=ws1", "org=o1", "region=eu"}, got)
	assert.Equal(t, multitenant.DefaultPriority, matches[3].Priority)

	primary, ok := m.ExtractPrimaryEntity(req, defs)
	require.True(t, ok)
	assert.Equal(t, multitenant.EntityRef{Type: "tenant", ID: "acme"}, primary.Ref())
}

func TestManagerSkipsFailuresWithoutFailingRequest(t *testing.T) {
	t.Parallel()
	logger := &recordingLogger{}
	m := NewManager(nil, logger)

	require.NoError(t, m.Register("boom", StrategyFunc(func(multitenant.Request, multitenant.EntityDefinition) (string, error) {
		return "", errors.New("boom")
	})))
	require.NoError(t, m.Register("panics", StrategyFunc(func(multitenant.Request, multitenant.EntityDefinition) (string, error) {
		panic("unexpected")
	})))

	defs := []multitenant.EntityDefinition{
		{Type: "a", IdentificationStrategy: "boom"},
		{Type: "b", IdentificationStrategy: "missing"},
		{Type: "c", IdentificationStrategy: "panics"},
		{Type: "d", IdentificationStrategy: StrategyQuery},
		{Type: "e", IdentificationStrategy: StrategyQuery, Disabled: true},
		{Type: "tenant", IdentificationStrategy: StrategyQuery},
	}
	req := multitenant.StaticRequest{QueryParams: map[string]string{"d": "../bad", "e": "x", "tenant": "ok"}}

	matches := m.ExtractEntityInfo(req, defs)
	require.Len(t, matches, 1)
	assert.Equal(t, "tenant", matches[0].Type)
	assert.NotEmpty(t, logger.debugs)
}

func TestManagerNoMatch(t *testing.T) {
	t.Parallel()
	m := NewManager(nil, nil)
	_, ok := m.ExtractPrimaryEntity(multitenant.StaticRequest{Host: "localhost"}, []multitenant.EntityDefinition{
		{Type: "tenant", IdentificationStrategy: StrategySubdomain},
	})
	assert.False(t, ok)
}

func TestManagerValidateDefinition(t *testing.T) {
	t.Parallel()
	m := NewManager(nil, nil)

	assert.NoError(t, m.ValidateDefinition(multitenant.EntityDefinition{Type: "tenant"}))
	assert.ErrorIs(t, m.ValidateDefinition(multitenant.EntityDefinition{Type: "tenant", IdentificationStrategy: "nope"}), multitenant.ErrUnknownStrategy)
	assert.ErrorIs(t, m.ValidateDefinition(multitenant.EntityDefinition{
		Type:                   "tenant",
		IdentificationStrategy: StrategyHeader,
		Identification:         multitenant.IdentificationConfig{Pattern: "("},
	}), multitenant.ErrConfiguration)
}
