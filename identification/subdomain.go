package identification

import (
	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
)

// DefaultSubdomainPattern captures the left-most label of a host with at
// least two further labels (acme.example.com → acme).
const DefaultSubdomainPattern = `^([^.]+)\.(.+\..+)$`

// Subdomain identifies entities by the request hostname.
type Subdomain struct {
	patterns *patternCache
}

var _ Strategy = (*Subdomain)(nil)

// NewSubdomain creates a Subdomain strategy.
func NewSubdomain() *Subdomain {
	return &Subdomain{patterns: newPatternCache()}
}

func (s *Subdomain) pattern(def multitenant.EntityDefinition) string {
	if def.Identification.Pattern != "" {
		return def.Identification.Pattern
	}
	return DefaultSubdomainPattern
}

// ExtractID matches the hostname against the configured pattern and returns
// the first capture group.
func (s *Subdomain) ExtractID(req multitenant.Request, def multitenant.EntityDefinition) (string, error) {
	re, err := s.patterns.get(s.pattern(def))
	if err != nil {
		return "", err
	}
	host := req.Hostname()
	if host == "" {
		return "", nil
	}
	return firstGroup(re, host), nil
}

// ValidateConfig reports whether the pattern compiles.
func (s *Subdomain) ValidateConfig(def multitenant.EntityDefinition) bool {
	_, err := s.patterns.get(s.pattern(def))
	return err == nil
}
