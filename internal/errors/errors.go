// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	// ErrNoViableStrategy means the generator found zero legal candidates for
	// a ticker. Expected and frequent; callers surface it, they do not retry.
	ErrNoViableStrategy = errors.New("no viable strategy")

	// ErrInvalidConfiguration means a config value failed validation at
	// construction time. Callers should halt the whole run.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInsufficientLiquidity and ErrInsufficientCredit are per-candidate
	// skip reasons. The generator absorbs them and continues with the
	// remaining candidate types.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInsufficientCredit    = errors.New("insufficient credit")

	// ErrNoHistoricalData skips a single earnings event in a backtest run.
	ErrNoHistoricalData = errors.New("no historical data")

	ErrDatabaseError = errors.New("database error")
)

// SkipError records why one candidate strategy type was skipped during
// generation. It wraps one of the skip sentinels.
type SkipError struct {
	StrategyType string
	Reason       string
	Err          error
}

func (e *SkipError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("skipped %s: %s: %v", e.StrategyType, e.Reason, e.Err)
	}
	return fmt.Sprintf("skipped %s: %s", e.StrategyType, e.Reason)
}

func (e *SkipError) Unwrap() error {
	return e.Err
}

// NewSkipError creates a new SkipError.
func NewSkipError(strategyType, reason string, err error) *SkipError {
	return &SkipError{
		StrategyType: strategyType,
		Reason:       reason,
		Err:          err,
	}
}

// ConfigError reports a specific invalid configuration field. It wraps
// ErrInvalidConfiguration so errors.Is distinguishes configuration errors
// from "no opportunity found".
type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field string, value interface{}, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DataError represents a data-related error from the store.
type DataError struct {
	DataType string
	Ticker   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Ticker, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Ticker, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, ticker, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Ticker:   ticker,
		Message:  message,
		Err:      err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
