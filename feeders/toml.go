package feeders

import (
	"github.com/golobby/config/v3/pkg/feeder"
)

// TomlFeeder is a feeder that reads TOML files
type TomlFeeder struct {
	feeder.Toml
}

var _ ComplexFeeder = TomlFeeder{}

// NewTomlFeeder creates a new TomlFeeder that reads from the specified TOML file
func NewTomlFeeder(filePath string) TomlFeeder {
	return TomlFeeder{feeder.Toml{Path: filePath}}
}

// FeedKey reads the file and extracts a specific top-level key
func (t TomlFeeder) FeedKey(key string, target any) error {
	return feedKey(t.Toml.Path, key, target)
}
