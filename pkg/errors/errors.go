package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/*
Kind classifies every failure the engine can surface. Front-ends map a Kind
onto their own status vocabulary (HTTP status, MCP tool error) without ever
inspecting the wrapped cause.
*/
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindAlreadyExists
	KindRelationshipNotPermitted
	KindStore
	KindEmbedding
)

func (kind Kind) String() string {
	switch kind {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindRelationshipNotPermitted:
		return "relationship_not_permitted"
	case KindStore:
		return "store"
	case KindEmbedding:
		return "embedding"
	default:
		return "unknown"
	}
}

func (kind Kind) MarshalText() ([]byte, error) {
	return []byte(kind.String()), nil
}

/*
Error is the single error type returned across package boundaries.
Store failures keep the raw driver error in Err for logging, but Error()
only ever reports the generic message together with the failed step.
*/
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Step    string `json:"step,omitempty"`
	Err     error  `json:"-"`
}

/*
Error implements the error interface.
*/
func (e *Error) Error() string {
	if e.Kind == KindStore {
		if e.Step != "" {
			return fmt.Sprintf("graph store failure (code %d) during %s", e.Code, e.Step)
		}

		return fmt.Sprintf("graph store failure (code %d)", e.Code)
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

/*
Is matches on Kind so callers can write errors.Is(err, ErrNotFound).
*/
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)

	if !ok {
		return false
	}

	return e.Kind == other.Kind
}

// Application codes live in the -32000 .. -32099 range.
var (
	ErrValidation    = &Error{Kind: KindValidation, Code: -32602, Message: "invalid model card"}
	ErrNotFound      = &Error{Kind: KindNotFound, Code: -32004, Message: "not found"}
	ErrAlreadyExists = &Error{Kind: KindAlreadyExists, Code: -32009, Message: "already exists"}
	ErrNotPermitted  = &Error{Kind: KindRelationshipNotPermitted, Code: -32010, Message: "relationship not permitted"}
	ErrStore         = &Error{Kind: KindStore, Code: -32050, Message: "graph store failure"}
	ErrEmbedding     = &Error{Kind: KindEmbedding, Code: -32060, Message: "embedding failure"}
)

// WithMessagef creates a *copy* of an Error with a formatted message.
// It does not modify the original error variable.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	newErr := *e
	newErr.Message = fmt.Sprintf(format, args...)
	return &newErr
}

/*
WithStep returns a copy tagged with the engine step that failed.
*/
func (e *Error) WithStep(step string) *Error {
	newErr := *e
	newErr.Step = step
	return &newErr
}

func Validation(format string, args ...any) error {
	return ErrValidation.WithMessagef(format, args...)
}

func NotFound(format string, args ...any) error {
	return ErrNotFound.WithMessagef(format, args...)
}

func AlreadyExists(format string, args ...any) error {
	return ErrAlreadyExists.WithMessagef(format, args...)
}

func NotPermitted(source, target string) error {
	return ErrNotPermitted.WithMessagef(
		"relationship from %s to %s is not permitted", source, target,
	)
}

/*
Store wraps a raw store failure. An error that is already classified is
passed through untouched so the first classification wins.
*/
func Store(step string, err error) error {
	if err == nil {
		return nil
	}

	var classified *Error

	if stderrors.As(err, &classified) {
		return err
	}

	wrapped := ErrStore.WithStep(step)
	wrapped.Err = err
	return wrapped
}

func Embedding(err error) error {
	if err == nil {
		return nil
	}

	wrapped := ErrEmbedding.WithMessagef("embedding failure: %v", err)
	wrapped.Err = err
	return wrapped
}

/*
KindOf reports the Kind of err, or 0 when err is not classified.
*/
func KindOf(err error) Kind {
	var classified *Error

	if stderrors.As(err, &classified) {
		return classified.Kind
	}

	return 0
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns a sensible default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   5,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryWithBackoff executes a function with exponential backoff retry logic.
// It is only used while waiting for the graph store to come up; engine
// writes are never retried automatically.
func RetryWithBackoff(config *RetryConfig, fn func() error) error {
	var err error
	delay := config.InitialDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		if attempt == config.MaxAttempts-1 {
			break
		}

		time.Sleep(delay)
		delay = time.Duration(float64(delay) * config.BackoffFactor)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return fmt.Errorf("after %d attempts, last error: %w", config.MaxAttempts, err)
}
