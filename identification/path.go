package identification

import (
	"strings"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
)

// DefaultPathSegment is the segment index holding the id under the default
// prefix (/tenants/acme → segment 1 is "acme").
const DefaultPathSegment = 1

// Path identifies entities by a URL path segment under a prefix.
type Path struct{}

var _ Strategy = Path{}

// NewPath creates a Path strategy.
func NewPath() Path {
	return Path{}
}

func pathPrefix(def multitenant.EntityDefinition) string {
	if def.Identification.Prefix != "" {
		return def.Identification.Prefix
	}
	return "/" + def.Type + "s"
}

func pathSegment(def multitenant.EntityDefinition) int {
	if def.Identification.Segment > 0 {
		return def.Identification.Segment
	}
	return DefaultPathSegment
}

// ExtractID returns the configured segment when the path starts with the
// prefix. Segments are the non-empty "/"-separated parts of the path, so the
// prefix itself occupies the first ones.
func (Path) ExtractID(req multitenant.Request, def multitenant.EntityDefinition) (string, error) {
	p := req.URL()
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	prefix := pathPrefix(def)
	if !strings.HasPrefix(p, prefix) {
		return "", nil
	}
	// "/tenantsx" must not match prefix "/tenants"
	if rest := p[len(prefix):]; rest != "" && !strings.HasPrefix(rest, "/") && !strings.HasSuffix(prefix, "/") {
		return "", nil
	}

	segments := make([]string, 0, 4)
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	idx := pathSegment(def)
	if idx >= len(segments) {
		return "", nil
	}
	return segments[idx], nil
}

// ValidateConfig requires the prefix to be absolute.
func (Path) ValidateConfig(def multitenant.EntityDefinition) bool {
	return strings.HasPrefix(pathPrefix(def), "/") && def.Identification.Segment >= 0
}
