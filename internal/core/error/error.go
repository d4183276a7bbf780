package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing key lookup.
	RedisNotFoundMessage = "redis key not found"
	// RetrievalErrorMessage describes vector search failures.
	RetrievalErrorMessage = "context retrieval unavailable"
	// CompletionErrorMessage describes LLM completion failures.
	CompletionErrorMessage = "completion request failed"
	// ArtifactErrorMessage describes presentation artifact failures.
	ArtifactErrorMessage = "artifact generation failed"
	// PersistenceErrorMessage describes checkpoint write failures.
	PersistenceErrorMessage = "conversation persistence failed"
	// InvalidTurnStateMessage describes malformed turn history.
	InvalidTurnStateMessage = "invalid turn state"
)

// Sentinel kinds for turn-level failures. Callers classify with errors.Is.
var (
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	ErrCompletionFailure    = errors.New("completion failure")
	ErrInvalidTurnState     = errors.New("invalid turn state")
	ErrArtifactGeneration   = errors.New("artifact generation error")
	ErrPersistence          = errors.New("persistence failure")
)

// AppError wraps an underlying error with a failure kind, an HTTP status and
// a safe user-facing message.
type AppError struct {
	Err     error
	Kind    error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Is reports whether the target matches the kind, the underlying error, or
// the AppError itself.
func (e *AppError) Is(target error) bool {
	if e.Kind != nil && target == e.Kind {
		return true
	}
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

func wrapKind(err, kind error, status int, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{Err: err, Kind: kind, Status: status, Message: message}
}

// WrapRetrieval classifies a vector search failure.
func WrapRetrieval(err error) error {
	return wrapKind(err, ErrRetrievalUnavailable, http.StatusBadGateway, RetrievalErrorMessage)
}

// WrapCompletion classifies an LLM completion failure.
func WrapCompletion(err error) error {
	return wrapKind(err, ErrCompletionFailure, http.StatusBadGateway, CompletionErrorMessage)
}

// WrapArtifact classifies a presentation artifact failure.
func WrapArtifact(err error) error {
	return wrapKind(err, ErrArtifactGeneration, http.StatusInternalServerError, ArtifactErrorMessage)
}

// WrapPersistence classifies a checkpoint or message-log write failure.
func WrapPersistence(err error) error {
	return wrapKind(err, ErrPersistence, http.StatusBadGateway, PersistenceErrorMessage)
}

// NewInvalidTurnState reports malformed conversation history, e.g. a turn
// with no user message to respond to.
func NewInvalidTurnState(detail string) error {
	return &AppError{
		Err:     errors.New(detail),
		Kind:    ErrInvalidTurnState,
		Status:  http.StatusUnprocessableEntity,
		Message: InvalidTurnStateMessage,
	}
}
