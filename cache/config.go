package cache

import (
	"fmt"
	"time"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
)

// EvictionPolicy selects which entry is removed when a store is full.
type EvictionPolicy string

const (
	// EvictLRU removes the least recently used entry. Both Get and Set count as use.
	EvictLRU EvictionPolicy = "lru"
	// EvictFIFO removes the oldest inserted entry.
	EvictFIFO EvictionPolicy = "fifo"
	// EvictRandom removes a uniformly chosen entry.
	EvictRandom EvictionPolicy = "random"
)

// Config defines the configuration of a Store.
//
// Example YAML configuration:
//
//	cache:
//	  ttl: 5m
//	  maxSize: 100
//	  evictionPolicy: lru
//	  enabled: true
type Config struct {
	// TTL is the default time-to-live of entries. Zero means entries never
	// expire. Negative values are rejected by Validate.
	TTL time.Duration `json:"ttl" yaml:"ttl" toml:"ttl" env:"TTL" default:"5m"`

	// MaxSize is the maximum number of entries. Must be at least 1.
	MaxSize int `json:"maxSize" yaml:"maxSize" toml:"maxSize" env:"MAX_SIZE" default:"100"`

	// EvictionPolicy is one of lru, fifo, random.
	EvictionPolicy EvictionPolicy `json:"evictionPolicy" yaml:"evictionPolicy" toml:"evictionPolicy" env:"EVICTION_POLICY" default:"lru"`

	// Enabled turns the store on. A disabled store reports every key absent.
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled" env:"ENABLED" default:"true"`
}

// DefaultConfig returns the default store configuration: 5 minute TTL,
// 100 entries, LRU eviction, enabled.
func DefaultConfig() Config {
	return Config{
		TTL:            5 * time.Minute,
		MaxSize:        100,
		EvictionPolicy: EvictLRU,
		Enabled:        true,
	}
}

// Validate checks the configuration. Negative TTL or a MaxSize below one
// are validation errors rather than silently clamped.
func (c Config) Validate() error {
	if c.TTL < 0 {
		return fmt.Errorf("%w: got %v", multitenant.ErrInvalidCacheTTL, c.TTL)
	}
	if c.MaxSize < 1 {
		return fmt.Errorf("%w: got %d", multitenant.ErrInvalidCacheSize, c.MaxSize)
	}
	switch c.EvictionPolicy {
	case EvictLRU, EvictFIFO, EvictRandom:
	default:
		return fmt.Errorf("%w: %q", multitenant.ErrInvalidEviction, c.EvictionPolicy)
	}
	return nil
}
