package core

import (
	"errors"
	"fmt"
)

var (
	ErrRunActive       = errors.New("import run already active")
	ErrNoActiveRun     = errors.New("no active import run")
	ErrChunkInProgress = errors.New("import chunk already in progress")
	ErrStateConflict   = errors.New("import state changed concurrently")
	ErrStateCorruption = errors.New("import state corrupted")
	ErrNotFound        = errors.New("not found")
	ErrQueueFull       = errors.New("scheduler queue full")
)

// ValidationError reports a row missing a required value.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("required field %s is empty", e.Field)
}

// StructuralError reports a file whose header cannot be used. The run is
// aborted before any row is read.
type StructuralError struct {
	Err error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("invalid csv structure: %v", e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// StoreError wraps a collaborator store failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// FetchErrorKind classifies asset fetch failures.
type FetchErrorKind string

const (
	FetchInvalidURL  FetchErrorKind = "invalid_url"
	FetchNetwork     FetchErrorKind = "network"
	FetchUnreachable FetchErrorKind = "unreachable"
	FetchEmptyBody   FetchErrorKind = "empty_body"
	FetchTooLarge    FetchErrorKind = "too_large"
	FetchStore       FetchErrorKind = "store"
)

// FetchError reports why an asset could not be resolved.
type FetchError struct {
	Kind FetchErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("asset fetch %s: %s", e.Kind, e.URL)
	}
	return fmt.Sprintf("asset fetch %s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// FetchKind returns the kind of a FetchError in err's chain, or "".
func FetchKind(err error) FetchErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
