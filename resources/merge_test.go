package resources

import (
	"testing"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeLaws(t *testing.T) {
	t.Parallel()

	base := map[string]any{"a": 1, "shared": "base"}
	overlay := map[string]any{"b": 2, "shared": "overlay"}

	extended := Extend(base, overlay).(map[string]any)
	assert.Equal(t, map[string]any{"a": 1, "b": 2, "shared": "overlay"}, extended)
	for k := range base {
		assert.Contains(t, extended, k)
	}

	assert.Equal(t, overlay, Isolate(base, overlay))
	assert.Equal(t, base, Override(base, nil))
	assert.Equal(t, overlay, Override(base, overlay))

	var nilMap map[string]any
	assert.Equal(t, base, Override(base, nilMap))

	assert.Equal(t, map[string]any{"a": 1, "shared": "base"}, base, "base is not modified")
}

func TestDeepMerge(t *testing.T) {
	t.Parallel()

	base := map[string]any{
		"db":    map[string]any{"host": "localhost", "port": 5432},
		"tags":  []string{"a"},
		"level": "info",
	}
	overlay := map[string]any{
		"db":    map[string]any{"port": 6432, "user": "acme"},
		"tags":  []string{"b"},
		"level": "debug",
	}

	got := DeepMerge(base, overlay)
	assert.Equal(t, map[string]any{
		"db":    map[string]any{"host": "localhost", "port": 6432, "user": "acme"},
		"tags":  []string{"a", "b"},
		"level": "debug",
	}, got)
}

func TestConcat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b", "c"}, Concat([]string{"a"}, []string{"b", "c"}))
	assert.Equal(t, map[string]any{"x": 1, "y": 2}, Concat(map[string]any{"x": 1}, map[string]any{"y": 2}))
	assert.Equal(t, "overlay", Concat([]string{"a"}, "overlay"))
	assert.Equal(t, []int{1}, Concat([]int{1}, nil))
}

func TestMergeUnknownStrategy(t *testing.T) {
	t.Parallel()

	_, err := Merge("replace", 1, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, multitenant.ErrConfiguration)

	_, err = MergeWithPriority(nil, "replace")
	assert.ErrorIs(t, err, multitenant.ErrUnknownMergeStrategy)
}

func TestMergeWithPriority(t *testing.T) {
	t.Parallel()

	items := []PriorityItem{
		{Priority: 30, Data: map[string]any{"k": "entity", "e": true}},
		{Priority: 10, Data: map[string]any{"k": "global", "g": true}},
		{Priority: 20, Data: map[string]any{"k": "parent", "p": true}},
	}

	got, err := MergeWithPriority(items, multitenant.MergeExtend)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "entity", "g": true, "p": true, "e": true}, got)

	got, err = MergeWithPriority(items, multitenant.MergeOverride)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "entity", "e": true}, got)

	got, err = MergeWithPriority([]PriorityItem{
		{Priority: 1, Data: []string{"first"}},
		{Priority: 1, Data: []string{"second"}},
	}, multitenant.MergeConcat)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, got, "ties keep input order")

	got, err = MergeWithPriority(nil, multitenant.MergeExtend)
	require.NoError(t, err)
	assert.Nil(t, got)
}
