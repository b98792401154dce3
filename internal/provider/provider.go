// Package provider contains the external data source adapters used by the
// reconciliation engine. Each adapter exposes a single capability: list the
// constituent securities of one taxonomy leaf, paginated, behind its own
// rate limiter. Adapters never write to any store.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Constituent is one security returned by an adapter for a taxonomy leaf.
// Code is the provider's raw form; normalization happens in the engine.
type Constituent struct {
	Code   string
	Name   string
	Market string
}

// Adapter is the capability interface implemented per external data source.
type Adapter interface {
	// Name identifies the source in mappings and logs.
	Name() string
	// Priority orders sources when candidates conflict; higher wins.
	Priority() int
	// Confidence is the score attached to this source's matches.
	Confidence() float64
	// FetchConstituents returns one page of constituents for a leaf industry
	// code, plus whether more pages remain.
	FetchConstituents(ctx context.Context, leafCode string, page int) ([]Constituent, bool, error)
}

// TransientError marks a retryable failure: timeout, 5xx, throttle rejection.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// MalformedResponseError marks an unexpected response schema. Not retryable;
// the leaf is skipped.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed provider response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// AuthError marks an authentication or authorization rejection. Fatal for the
// adapter's remaining work in the run.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("provider auth error: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable provider failure
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsMalformed reports whether err is an unexpected-schema failure
func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}

// IsAuth reports whether err is an auth rejection
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
