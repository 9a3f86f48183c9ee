// Package identification maps an inbound request to the entities it
// addresses. Strategies extract a candidate id for one entity definition;
// the Manager runs every enabled definition's strategy, validates the ids
// and returns the matches ordered by priority.
package identification

import (
	"fmt"
	"regexp"
	"sync"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
)

// Built-in strategy names.
const (
	StrategySubdomain = "subdomain"
	StrategyPath      = "path"
	StrategyHeader    = "header"
	StrategyQuery     = "query"
	StrategyComposite = "composite"
)

// Strategy extracts an entity id from a request for one entity definition.
type Strategy interface {
	// ExtractID returns the candidate id, or "" when the request does not
	// address this entity type. An error means the strategy could not be
	// applied (for example a malformed pattern).
	ExtractID(req multitenant.Request, def multitenant.EntityDefinition) (string, error)

	// ValidateConfig reports whether def carries usable options for this strategy.
	ValidateConfig(def multitenant.EntityDefinition) bool
}

// StrategyFunc adapts a plain function to Strategy. Its ValidateConfig
// accepts every definition.
type StrategyFunc func(req multitenant.Request, def multitenant.EntityDefinition) (string, error)

// ExtractID calls f.
func (f StrategyFunc) ExtractID(req multitenant.Request, def multitenant.EntityDefinition) (string, error) {
	return f(req, def)
}

// ValidateConfig always returns true.
func (f StrategyFunc) ValidateConfig(multitenant.EntityDefinition) bool {
	return true
}

// patternCache compiles regular expressions once per pattern string.
type patternCache struct {
	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
}

func newPatternCache() *patternCache {
	return &patternCache{compiled: make(map[string]*regexp.Regexp)}
}

func (c *patternCache) get(pattern string) (*regexp.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if re, ok := c.compiled[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", multitenant.ErrInvalidPattern, pattern, err)
	}
	c.compiled[pattern] = re
	return re, nil
}

// firstGroup returns the first capture group of re in s, the whole match
// when re has no groups, or "" when re does not match.
func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	if len(m) > 1 {
		return m[1]
	}
	return m[0]
}
