package errors

import (
	"errors"
	"fmt"
)

// CorpusError is the structured error type for codecorpus.
// It carries enough context for logging, exit handling and user presentation.
type CorpusError struct {
	// Code is the unique error code (e.g., "ERR_103_CHUNK_POLICY").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *CorpusError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CorpusError) Unwrap() error {
	return e.Cause
}

// Is matches another CorpusError by code.
func (e *CorpusError) Is(target error) bool {
	if t, ok := target.(*CorpusError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *CorpusError) WithDetail(key, value string) *CorpusError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *CorpusError) WithSuggestion(suggestion string) *CorpusError {
	e.Suggestion = suggestion
	return e
}

// New creates a new CorpusError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *CorpusError {
	return &CorpusError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a CorpusError from an existing error.
// An error that already is a CorpusError is returned unchanged.
func Wrap(code string, err error) *CorpusError {
	if err == nil {
		return nil
	}
	var ce *CorpusError
	if errors.As(err, &ce) {
		return ce
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration error.
func ConfigError(message string, cause error) *CorpusError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O error.
func IOError(message string, cause error) *CorpusError {
	return New(ErrCodeFileRead, message, cause)
}

// EmbeddingError creates an embedding error.
func EmbeddingError(message string, cause error) *CorpusError {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// IndexError creates an index build error.
func IndexError(message string, cause error) *CorpusError {
	return New(ErrCodeIndexFailed, message, cause)
}

// PersistError creates a persistence error.
func PersistError(message string, cause error) *CorpusError {
	return New(ErrCodePersistFailed, message, cause)
}

// As returns the first CorpusError in err's chain.
func As(err error) (*CorpusError, bool) {
	var ce *CorpusError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsRetryable reports whether err carries a retryable CorpusError.
func IsRetryable(err error) bool {
	ce, ok := As(err)
	return ok && ce.Retryable
}

// IsFatal reports whether err must abort the run.
// Plain errors are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	ce, ok := As(err)
	if !ok {
		return true
	}
	return ce.Severity == SeverityFatal
}

// GetCode extracts the error code, or "" if err is not a CorpusError.
func GetCode(err error) string {
	if ce, ok := As(err); ok {
		return ce.Code
	}
	return ""
}

// GetCategory extracts the category, or "" if err is not a CorpusError.
func GetCategory(err error) Category {
	if ce, ok := As(err); ok {
		return ce.Category
	}
	return ""
}
