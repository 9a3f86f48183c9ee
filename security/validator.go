// Package security validates identifiers extracted from untrusted requests
// before they are used as entity ids or path components.
package security

import (
	"fmt"
	"regexp"
	"strings"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
)

// DefaultMaxIDLength is the default maximum id length.
const DefaultMaxIDLength = 64

var defaultIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Config configures the Validator.
type Config struct {
	MaxIDLength int    `json:"maxIdLength" yaml:"maxIdLength" toml:"maxIdLength" env:"MAX_ID_LENGTH" default:"64"`
	IDPattern   string `json:"idPattern,omitempty" yaml:"idPattern,omitempty" toml:"idPattern,omitempty" env:"ID_PATTERN"`
}

// DefaultConfig returns the default validator configuration.
func DefaultConfig() Config {
	return Config{MaxIDLength: DefaultMaxIDLength}
}

// Validator implements multitenant.IDValidator.
type Validator struct {
	maxLength int
	pattern   *regexp.Regexp
}

var _ multitenant.IDValidator = (*Validator)(nil)

// NewValidator creates a Validator. An invalid IDPattern is a validation error.
func NewValidator(cfg Config) (*Validator, error) {
	v := &Validator{
		maxLength: cfg.MaxIDLength,
		pattern:   defaultIDPattern,
	}
	if v.maxLength <= 0 {
		v.maxLength = DefaultMaxIDLength
	}
	if cfg.IDPattern != "" {
		re, err := regexp.Compile(cfg.IDPattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", multitenant.ErrInvalidPattern, cfg.IDPattern, err)
		}
		v.pattern = re
	}
	return v, nil
}

// Default returns a Validator with the default configuration.
func Default() *Validator {
	v, _ := NewValidator(DefaultConfig())
	return v
}

// ValidateID trims id and checks it is non-empty, within the length limit
// and made only of allowed characters.
func (v *Validator) ValidateID(id, category string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: %s", multitenant.ErrEmptyID, category)
	}
	if len(id) > v.maxLength {
		return "", fmt.Errorf("%w: %s id is %d characters, maximum is %d", multitenant.ErrIDTooLong, category, len(id), v.maxLength)
	}
	if !v.pattern.MatchString(id) {
		return "", fmt.Errorf("%w: %s id %q", multitenant.ErrIDInvalidChars, category, id)
	}
	return id, nil
}
