package feeders

import "errors"

var (
	// ErrUnsupportedFormat is returned for files whose extension is not
	// yaml, yml, json or toml.
	ErrUnsupportedFormat = errors.New("unsupported configuration format")

	// ErrDecode wraps a syntax or type error from the underlying decoder.
	ErrDecode = errors.New("failed to decode configuration")

	ErrEnvInvalidStructure     = errors.New("env: invalid structure")
	ErrEnvEmptyPrefixAndSuffix = errors.New("env: prefix or suffix cannot be empty")
	ErrEnvFieldCannotBeSet     = errors.New("env: field cannot be set")
)
