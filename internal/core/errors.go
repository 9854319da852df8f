// Package core defines the domain model shared by every StudyFlow
// subsystem: entities (projects, documents, conversations, generated files),
// chat message primitives, the error taxonomy, and token estimation.
// It has no external dependencies so any package may import it.
package core

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error code. Codes never change once
// released; clients and operators key on them.
type Code string

const (
	// CodeUnsupportedFormat indicates a document's declared content type has
	// no registered loader.
	CodeUnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	// CodeEmptyContent indicates a document extracted to no usable text, or
	// splitting produced zero chunks.
	CodeEmptyContent Code = "EMPTY_CONTENT"
	// CodeLoaderFailure indicates the format-specific loader failed on a
	// non-empty input.
	CodeLoaderFailure Code = "LOADER_FAILURE"
	// CodeEmbeddingUnavailable indicates the embedding provider failed after
	// all retry attempts.
	CodeEmbeddingUnavailable Code = "EMBEDDING_UNAVAILABLE"
	// CodeVectorStoreUnavailable indicates a transient vector store failure
	// that survived retries.
	CodeVectorStoreUnavailable Code = "VECTOR_STORE_UNAVAILABLE"
	// CodeVectorStoreCorrupt indicates dimension mismatch or schema drift in
	// a collection. Operator intervention is required.
	CodeVectorStoreCorrupt Code = "VECTOR_STORE_CORRUPT"
	// CodeNotIndexed indicates a query against a project with no collection.
	CodeNotIndexed Code = "NOT_INDEXED"
	// CodeModelReturnedEmpty indicates the chat model produced no content.
	CodeModelReturnedEmpty Code = "MODEL_RETURNED_EMPTY"
	// CodeAlreadyProcessed indicates an ingest was requested for a document
	// whose chunks are already indexed. Informational, not a failure.
	CodeAlreadyProcessed Code = "ALREADY_PROCESSED"
	// CodeCancelled indicates the caller disconnected or the job was
	// cancelled. Never logged at error level.
	CodeCancelled Code = "CANCELLED"
	// CodeNotFound indicates a referenced entity does not exist.
	CodeNotFound Code = "NOT_FOUND"
	// CodeSlowConsumer indicates a streaming client could not keep up with
	// model output and the stream was aborted.
	CodeSlowConsumer Code = "SLOW_CONSUMER"
)

// Error is the structured error carried across subsystem boundaries.
// It pairs a stable Code with a human-readable message and optionally wraps
// an underlying cause.
type Error struct {
	// Code is the stable machine-readable error code.
	Code Code
	// Message is the human-readable description.
	Message string
	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause so errors.Is/As can see through it.
func (e *Error) Unwrap() error { return e.Err }

// E constructs an *Error with the given code and formatted message.
func E(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error with the given code and message that wraps cause.
// A nil cause returns the same result as E.
func Wrap(cause error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: cause}
}

// CodeOf returns the Code of err if it is (or wraps) an *Error, or "" if not.
func CodeOf(err error) Code {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
