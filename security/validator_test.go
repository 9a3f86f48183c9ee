package security

import (
	"strings"
	"testing"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateID(t *testing.T) {
	t.Parallel()
	v := Default()

	tests := []struct {
		name    string
		id      string
		want    string
		wantErr error
	}{
		{name: "simple", id: "acme", want: "acme"},
		{name: "dash and underscore", id: "acme_corp-2", want: "acme_corp-2"},
		{name: "trimmed", id: "  acme ", want: "acme"},
		{name: "empty", id: "", wantErr: multitenant.ErrEmptyID},
		{name: "whitespace only", id: "   ", wantErr: multitenant.ErrEmptyID},
		{name: "path traversal", id: "../etc", wantErr: multitenant.ErrIDInvalidChars},
		{name: "dot", id: "a.b", wantErr: multitenant.ErrIDInvalidChars},
		{name: "too long", id: strings.Repeat("a", 65), wantErr: multitenant.ErrIDTooLong},
		{name: "max length", id: strings.Repeat("a", 64), want: strings.Repeat("a", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := v.ValidateID(tt.id, "tenant")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, multitenant.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewValidatorCustomConfig(t *testing.T) {
	t.Parallel()

	v, err := NewValidator(Config{MaxIDLength: 3, IDPattern: `^[a-z]+$`})
	require.NoError(t, err)

	_, err = v.ValidateID("abcd", "tenant")
	assert.ErrorIs(t, err, multitenant.ErrIDTooLong)
	_, err = v.ValidateID("AB", "tenant")
	assert.ErrorIs(t, err, multitenant.ErrIDInvalidChars)

	_, err = NewValidator(Config{IDPattern: "("})
	assert.ErrorIs(t, err, multitenant.ErrInvalidPattern)
}
