// Package feeders reads configuration files and environment variables into
// Go values. File feeders are chosen by extension and wrap the
// golobby/config feeders; Decode offers the same format selection for data
// that does not live on the local filesystem.
package feeders

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/golobby/config/v3"
	"gopkg.in/yaml.v3"
)

// Feeder is the golobby/config feeder contract.
type Feeder = config.Feeder

// ComplexFeeder is a Feeder that can also populate a target from a single
// top-level key of its source.
type ComplexFeeder interface {
	Feeder
	FeedKey(key string, target any) error
}

// Format is a supported configuration file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// ConfigExtensions lists the recognised file extensions in lookup order.
var ConfigExtensions = []string{".yaml", ".yml", ".json", ".toml"}

// FormatOf returns the format implied by the extension of name.
func FormatOf(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".json":
		return FormatJSON, true
	case ".toml":
		return FormatTOML, true
	}
	return "", false
}

// ForFile returns the file feeder matching the extension of path.
func ForFile(path string) (ComplexFeeder, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	switch format {
	case FormatYAML:
		return NewYamlFeeder(path), nil
	case FormatJSON:
		return NewJSONFeeder(path), nil
	default:
		return NewTomlFeeder(path), nil
	}
}

// Decode unmarshals data into target using the format implied by name.
func Decode(name string, data []byte, target any) error {
	format, ok := FormatOf(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, target)
	case FormatJSON:
		err = json.Unmarshal(data, target)
	case FormatTOML:
		_, err = toml.Decode(string(data), target)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	return nil
}

// DecodeKey decodes the value stored under a top-level key of data into
// target. A missing key leaves target untouched. Each format defers
// decoding of the selected value so that target's own struct tags apply.
func DecodeKey(name string, data []byte, key string, target any) error {
	format, ok := FormatOf(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	var err error
	switch format {
	case FormatYAML:
		var all map[string]yaml.Node
		if err = yaml.Unmarshal(data, &all); err == nil {
			if node, found := all[key]; found {
				err = node.Decode(target)
			}
		}
	case FormatJSON:
		var all map[string]json.RawMessage
		if err = json.Unmarshal(data, &all); err == nil {
			if raw, found := all[key]; found {
				err = json.Unmarshal(raw, target)
			}
		}
	case FormatTOML:
		var all map[string]toml.Primitive
		var md toml.MetaData
		if md, err = toml.Decode(string(data), &all); err == nil {
			if prim, found := all[key]; found {
				err = md.PrimitiveDecode(prim, target)
			}
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %s key %q: %v", ErrDecode, name, key, err)
	}
	return nil
}

// feedKey reads the file at path and decodes the value under key.
func feedKey(path, key string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return DecodeKey(path, data, key, target)
}
