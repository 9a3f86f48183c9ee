package multitenant

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromHTTPRequest(t *testing.T) {
	t.Parallel()
	r := httptest.NewRequest(http.MethodPost, "http://acme.example.com:8443/tenants/acme?tenant=beta", nil)
	r.Header.Set("X-Tenant-ID", "gamma")
	req := FromHTTPRequest(r)

	assert.Equal(t, http.MethodPost, req.Method())
	assert.Equal(t, "/tenants/acme?tenant=beta", req.URL())
	assert.Equal(t, "acme.example.com", req.Hostname())
	assert.Equal(t, "gamma", req.Header("x-tenant-id"))
	assert.Equal(t, "beta", req.Query("tenant"))
	assert.Empty(t, req.Query("missing"))
}

func TestStaticRequest(t *testing.T) {
	t.Parallel()
	req := StaticRequest{
		Path:        "/orgs/research",
		Host:        "research.example.com:80",
		Headers:     map[string]string{"X-Org-ID": "research"},
		QueryParams: map[string]string{"org": "lab"},
	}

	assert.Equal(t, http.MethodGet, req.Method())
	assert.Equal(t, "/orgs/research", req.URL())
	assert.Equal(t, "research.example.com", req.Hostname())
	assert.Equal(t, "research", req.Header("x-org-id"))
	assert.Empty(t, req.Header("X-Tenant-ID"))
	assert.Equal(t, "lab", req.Query("org"))

	assert.Equal(t, "localhost", StaticRequest{Host: "localhost"}.Hostname())
}
