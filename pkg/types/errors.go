package types

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every *ConfigurationError
	ErrConfiguration = errors.New("invalid configuration")
	// ErrInvalidSize matches every *InvalidSizeError
	ErrInvalidSize = errors.New("invalid payload size")
)

// ConfigurationError is returned when a configuration value is outside
// its enumerated or valid range
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

// NewConfigurationError builds a ConfigurationError, formatting value with %v
func NewConfigurationError(field string, value interface{}, reason string) *ConfigurationError {
	return &ConfigurationError{
		Field:  field,
		Value:  fmt.Sprintf("%v", value),
		Reason: reason,
	}
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
	}
	return fmt.Sprintf("invalid %s: %q (%s)", e.Field, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrConfiguration) match
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// MaxSize is the largest transfer size the models accept. It keeps every
// byte and bit count inside int range on 32 and 64 bit platforms.
const MaxSize = 1 << 30

// InvalidSizeError is returned when a payload size is not in 1..MaxSize
type InvalidSizeError struct {
	Size int
}

func (e *InvalidSizeError) Error() string {
	return fmt.Sprintf("invalid payload size %d: must be between 1 and %d", e.Size, MaxSize)
}

// Is lets errors.Is(err, ErrInvalidSize) match
func (e *InvalidSizeError) Is(target error) bool {
	return target == ErrInvalidSize
}

// CheckSize returns an *InvalidSizeError unless 0 < size <= MaxSize
func CheckSize(size int) error {
	if size <= 0 || size > MaxSize {
		return &InvalidSizeError{Size: size}
	}
	return nil
}
