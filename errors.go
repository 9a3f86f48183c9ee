package multitenant

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced by the entity core wraps exactly one of
// these so callers can classify it with errors.Is.
var (
	// ErrValidation marks malformed ids, patterns or configuration values.
	ErrValidation = errors.New("validation error")

	// ErrEntity marks lifecycle violations, capacity violations and adapter
	// or build failures.
	ErrEntity = errors.New("entity error")

	// ErrConfiguration marks malformed merge or strategy configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrContractViolation marks a capability invoked or registered without
	// an implementation. It indicates an integration bug.
	ErrContractViolation = errors.New("contract violation")
)

// Entity errors
var (
	ErrUnknownEntityType   = fmt.Errorf("%w: unknown entity type", ErrEntity)
	ErrEntityNotFound      = fmt.Errorf("%w: entity not found", ErrEntity)
	ErrCapacityExceeded    = fmt.Errorf("%w: maximum instances exceeded", ErrEntity)
	ErrNoAdapter           = fmt.Errorf("%w: no adapter can handle source", ErrEntity)
	ErrEntityBuildFailed   = fmt.Errorf("%w: entity build failed", ErrEntity)
	ErrEntityContextNil    = fmt.Errorf("%w: entity context is nil", ErrEntity)
	ErrEntityInactive      = fmt.Errorf("%w: entity is inactive", ErrEntity)
	ErrReloadRolledBack    = fmt.Errorf("%w: reload failed, previous instance restored", ErrEntity)
	ErrEntityNotRegistered = fmt.Errorf("%w: entity is not registered", ErrEntity)
)

// Validation errors
var (
	ErrEmptyID          = fmt.Errorf("%w: id is empty", ErrValidation)
	ErrIDTooLong        = fmt.Errorf("%w: id exceeds maximum length", ErrValidation)
	ErrIDInvalidChars   = fmt.Errorf("%w: id contains disallowed characters", ErrValidation)
	ErrInvalidPattern   = fmt.Errorf("%w: invalid pattern", ErrValidation)
	ErrInvalidCacheSize = fmt.Errorf("%w: cache max size must be at least 1", ErrValidation)
	ErrInvalidCacheTTL  = fmt.Errorf("%w: cache ttl must not be negative", ErrValidation)
	ErrInvalidEviction  = fmt.Errorf("%w: unknown eviction policy", ErrValidation)
	ErrEmptyName        = fmt.Errorf("%w: name is empty", ErrValidation)
)

// Configuration errors
var (
	ErrUnknownMergeStrategy = fmt.Errorf("%w: unknown merge strategy", ErrConfiguration)
	ErrUnknownStrategy      = fmt.Errorf("%w: unknown identification strategy", ErrConfiguration)
	ErrBuiltinStrategy      = fmt.Errorf("%w: built-in strategy cannot be replaced or removed", ErrConfiguration)
	ErrUnknownTransition    = fmt.Errorf("%w: unknown lifecycle transition", ErrConfiguration)
)

// Contract violations
var (
	ErrNilStrategy         = fmt.Errorf("%w: identification strategy is nil", ErrContractViolation)
	ErrNilResourceStrategy = fmt.Errorf("%w: resource loading strategy is nil", ErrContractViolation)
	ErrNilAdapter          = fmt.Errorf("%w: adapter is nil", ErrContractViolation)
	ErrNilFetcher          = fmt.Errorf("%w: resource fetcher is nil", ErrContractViolation)
	ErrNilStore            = fmt.Errorf("%w: cache store is nil", ErrContractViolation)
	ErrNilObserver         = fmt.Errorf("%w: observer is nil", ErrContractViolation)
)
