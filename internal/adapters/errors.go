package adapters

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy for adapter failures
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrParseFailure      = errors.New("parse failure")
	ErrTimeout           = errors.New("timeout")
	ErrConfiguration     = errors.New("source not configured")
)

// SourceError attaches the failing source and failure kind to an error.
type SourceError struct {
	Source string
	Kind   error
	Err    error
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Source, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Unavailable wraps err as ErrSourceUnavailable for source.
func Unavailable(source string, err error) error {
	return &SourceError{Source: source, Kind: ErrSourceUnavailable, Err: err}
}

// ParseFailure wraps err as ErrParseFailure for source.
func ParseFailure(source string, err error) error {
	return &SourceError{Source: source, Kind: ErrParseFailure, Err: err}
}

// NotConfigured reports that source was requested but is not enabled.
func NotConfigured(source string) error {
	return &SourceError{Source: source, Kind: ErrConfiguration}
}

// Classify maps an arbitrary adapter error onto the taxonomy. A deadline on
// ctx always wins so a hung connection reports as a timeout.
func Classify(ctx context.Context, source string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		if errors.Is(err, ErrTimeout) {
			return err
		}
		return &SourceError{Source: source, Kind: ErrTimeout, Err: err}
	}
	var se *SourceError
	if errors.As(err, &se) {
		return err
	}
	return Unavailable(source, err)
}

// KindOf returns a short label for metrics and logs.
func KindOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrParseFailure):
		return "parse_failure"
	case errors.Is(err, ErrConfiguration):
		return "not_configured"
	default:
		return "unavailable"
	}
}
