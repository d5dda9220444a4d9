// Package yamlutil wraps YAML parsing to isolate the external dependency.
// Decoding is strict and size-limited; durations decode from strings such
// as "30s".
package yamlutil

import (
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
)

// DefaultMaxSize limits YAML input to prevent memory exhaustion.
const DefaultMaxSize = 1 << 20

var (
	ErrNilData        = errors.New("yamlutil: nil or empty data")
	ErrNilDestination = errors.New("yamlutil: nil destination pointer")
	ErrInputTooLarge  = errors.New("yamlutil: input exceeds maximum size")
)

func validateInput(data []byte, v any, limit int) error {
	if len(data) == 0 {
		return ErrNilData
	}
	if len(data) > limit {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(data), limit)
	}
	if v == nil {
		return ErrNilDestination
	}
	return nil
}

// UnmarshalStrict decodes data into v, rejecting unknown fields.
func UnmarshalStrict(data []byte, v any) error {
	return UnmarshalStrictLimit(data, v, DefaultMaxSize)
}

// UnmarshalStrictLimit is UnmarshalStrict with a caller-chosen size limit.
func UnmarshalStrictLimit(data []byte, v any, limit int) error {
	if err := validateInput(data, v, limit); err != nil {
		return err
	}
	if err := yaml.UnmarshalWithOptions(data, v, yaml.Strict()); err != nil {
		return fmt.Errorf("yamlutil: %w", err)
	}
	return nil
}

// Marshal encodes v as YAML.
func Marshal(v any) ([]byte, error) {
	out, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("yamlutil: %w", err)
	}
	return out, nil
}
