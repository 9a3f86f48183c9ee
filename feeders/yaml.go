package feeders

import (
	"github.com/golobby/config/v3/pkg/feeder"
)

// YamlFeeder is a feeder that reads YAML files
type YamlFeeder struct {
	feeder.Yaml
}

var _ ComplexFeeder = YamlFeeder{}

// NewYamlFeeder creates a new YamlFeeder that reads from the specified YAML file
func NewYamlFeeder(filePath string) YamlFeeder {
	return YamlFeeder{feeder.Yaml{Path: filePath}}
}

// FeedKey reads the file and extracts a specific top-level key
func (y YamlFeeder) FeedKey(key string, target any) error {
	return feedKey(y.Yaml.Path, key, target)
}
