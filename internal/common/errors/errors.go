// Package errors provides standardized error handling for the query pipeline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeTableQueryFailed         ErrorCode = "TABLE_QUERY_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeUnsupportedTable         ErrorCode = "UNSUPPORTED_TABLE"
	ErrCodeUnsupportedOperator      ErrorCode = "UNSUPPORTED_OPERATOR"
	ErrCodeCacheLoadFailed          ErrorCode = "CACHE_LOAD_FAILED"
	ErrCodeLexiconInvalid           ErrorCode = "LEXICON_INVALID"
	ErrCodePipelineFailure          ErrorCode = "PIPELINE_FAILURE"
)

// Sentinels for errors.Is checks at package boundaries.
var (
	ErrUnsupportedTable    = errors.New(string(ErrCodeUnsupportedTable))
	ErrUnsupportedOperator = errors.New(string(ErrCodeUnsupportedOperator))
	ErrCacheLoadFailed     = errors.New(string(ErrCodeCacheLoadFailed))
)

// QueryError represents a structured application error.
type QueryError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("QueryError[%s]: %s", e.Code, e.Message)
}

func (e *QueryError) Unwrap() error {
	return e.cause
}

// New creates a QueryError with the given code and message.
func New(code ErrorCode, message string) *QueryError {
	return &QueryError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// Wrap creates a QueryError around an underlying cause.
func Wrap(code ErrorCode, message string, cause error) *QueryError {
	e := New(code, message)
	e.cause = cause
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// WithMetadata attaches diagnostic metadata, returning the same error.
func (e *QueryError) WithMetadata(key string, value interface{}) *QueryError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// NewTableQueryError marks a single-table query failure. These are isolated
// at the executor boundary and never abort sibling queries.
func NewTableQueryError(table string, cause error) *QueryError {
	e := Wrap(ErrCodeTableQueryFailed, fmt.Sprintf("query against %q failed", table), cause)
	e.Retryable = false
	return e.WithMetadata("table", table)
}

// NewCacheLoadError marks a domain value cache load failure. Non-fatal:
// tagging degrades to lexicon-only matches.
func NewCacheLoadError(source string, cause error) *QueryError {
	e := Wrap(ErrCodeCacheLoadFailed, fmt.Sprintf("loading domain values from %q failed", source), cause)
	e.Retryable = true
	return e.WithMetadata("source", source)
}

// NewPipelineError wraps an unexpected failure caught at the top of the
// pipeline; the caller converts it into an empty, explained response.
func NewPipelineError(cause error) *QueryError {
	return Wrap(ErrCodePipelineFailure, "query pipeline failed unexpectedly", cause)
}

// CodeOf extracts the error code, or PIPELINE_FAILURE for foreign errors.
func CodeOf(err error) ErrorCode {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ErrCodePipelineFailure
}

// IsRetryable reports whether the error class is worth retrying.
func IsRetryable(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Retryable
	}
	return false
}
