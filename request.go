package multitenant

import (
	"net"
	"net/http"
	"strings"
)

// Request is the read-only view of an inbound request that identification
// strategies work against. Header lookups are case-insensitive.
type Request interface {
	Method() string
	// URL returns the request path including the raw query, e.g. "/tenants/acme?x=1".
	URL() string
	// Hostname returns the host without port.
	Hostname() string
	Header(name string) string
	Query(name string) string
}

// IDValidator validates an extracted id for a category (usually the entity
// type) and returns the normalised id.
type IDValidator interface {
	ValidateID(id, category string) (string, error)
}

type httpRequest struct {
	r *http.Request
}

// FromHTTPRequest adapts a *http.Request to Request.
func FromHTTPRequest(r *http.Request) Request {
	return httpRequest{r: r}
}

func (h httpRequest) Method() string {
	return h.r.Method
}

func (h httpRequest) URL() string {
	return h.r.URL.RequestURI()
}

func (h httpRequest) Hostname() string {
	host := h.r.Host
	if host == "" {
		host = h.r.URL.Host
	}
	if hn, _, err := net.SplitHostPort(host); err == nil {
		return hn
	}
	return host
}

func (h httpRequest) Header(name string) string {
	return h.r.Header.Get(name)
}

func (h httpRequest) Query(name string) string {
	return h.r.URL.Query().Get(name)
}

// StaticRequest is a Request backed by plain values. Header keys are matched
// case-insensitively.
type StaticRequest struct {
	RequestMethod string
	Path          string
	Host          string
	Headers       map[string]string
	QueryParams   map[string]string
}

func (s StaticRequest) Method() string {
	if s.RequestMethod == "" {
		return http.MethodGet
	}
	return s.RequestMethod
}

func (s StaticRequest) URL() string {
	return s.Path
}

func (s StaticRequest) Hostname() string {
	if hn, _, err := net.SplitHostPort(s.Host); err == nil {
		return hn
	}
	return s.Host
}

func (s StaticRequest) Header(name string) string {
	for k, v := range s.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func (s StaticRequest) Query(name string) string {
	return s.QueryParams[name]
}
