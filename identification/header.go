package identification

import (
	"strings"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
)

// DefaultHeaderPattern passes the header value through unchanged.
const DefaultHeaderPattern = `^(.+)$`

// Header identifies entities by a request header, default X-{Type}-ID.
type Header struct {
	patterns *patternCache
}

var _ Strategy = (*Header)(nil)

// NewHeader creates a Header strategy.
func NewHeader() *Header {
	return &Header{patterns: newPatternCache()}
}

// HeaderName returns the header read for def.
func HeaderName(def multitenant.EntityDefinition) string {
	if def.Identification.Header != "" {
		return def.Identification.Header
	}
	return "X-" + def.TitleType() + "-ID"
}

func (h *Header) pattern(def multitenant.EntityDefinition) string {
	if def.Identification.Pattern != "" {
		return def.Identification.Pattern
	}
	return DefaultHeaderPattern
}

// ExtractID applies the configured pattern to the header value and returns
// the first capture group.
func (h *Header) ExtractID(req multitenant.Request, def multitenant.EntityDefinition) (string, error) {
	re, err := h.patterns.get(h.pattern(def))
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(req.Header(HeaderName(def)))
	if value == "" {
		return "", nil
	}
	return firstGroup(re, value), nil
}

// ValidateConfig reports whether the pattern compiles.
func (h *Header) ValidateConfig(def multitenant.EntityDefinition) bool {
	_, err := h.patterns.get(h.pattern(def))
	return err == nil
}
