package feeders

import (
	"github.com/golobby/config/v3/pkg/feeder"
)

// JSONFeeder is a feeder that reads JSON files
type JSONFeeder struct {
	feeder.Json
}

var _ ComplexFeeder = JSONFeeder{}

// NewJSONFeeder creates a new JSONFeeder that reads from the specified JSON file
func NewJSONFeeder(filePath string) JSONFeeder {
	return JSONFeeder{feeder.Json{Path: filePath}}
}

// FeedKey reads the file and extracts a specific top-level key
func (j JSONFeeder) FeedKey(key string, target any) error {
	return feedKey(j.Json.Path, key, target)
}
