// Package errors provides enhanced error types with helpful context and suggestions
package errors

import (
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Pipeline errors
	ErrCodePromptBuilding ErrorCode = "PROMPT_BUILD_FAILED"
	ErrCodeSQLGeneration  ErrorCode = "SQL_GENERATION_FAILED"
	ErrCodeExplanation    ErrorCode = "EXPLANATION_FAILED"

	// Safety gate errors
	ErrCodeUnsafeSQL          ErrorCode = "UNSAFE_SQL"
	ErrCodeNotSelect          ErrorCode = "NOT_A_SELECT"
	ErrCodeForbiddenToken     ErrorCode = "FORBIDDEN_TOKEN"
	ErrCodeMultipleStatements ErrorCode = "MULTIPLE_STATEMENTS"

	// Database errors
	ErrCodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecution     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeSchemaIntrospect   ErrorCode = "SCHEMA_INTROSPECTION_FAILED"

	// Session errors
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionWrite    ErrorCode = "SESSION_WRITE_FAILED"

	// Input validation errors
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED_FIELD"

	// Export errors
	ErrCodeExportFailed ErrorCode = "EXPORT_FAILED"
	ErrCodeNoResult     ErrorCode = "NO_RESULT_AVAILABLE"
)

// EnhancedError represents an error with additional context and helpful information
type EnhancedError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Cause      error                  `json:"-"`
}

// Error implements the error interface
func (e *EnhancedError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))
	if e.Details != "" {
		sb.WriteString(fmt.Sprintf(": %s", e.Details))
	}
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(" (cause: %v)", e.Cause))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error chain unwrapping
func (e *EnhancedError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly error message with suggestions
func (e *EnhancedError) UserMessage() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Details != "" {
		sb.WriteString(fmt.Sprintf("\n\nDetails: %s", e.Details))
	}

	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion))
	}

	return sb.String()
}

// New creates a new EnhancedError
func New(code ErrorCode, message string) *EnhancedError {
	return &EnhancedError{
		Code:     code,
		Message:  message,
		Metadata: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with enhanced context
func Wrap(err error, code ErrorCode, message string) *EnhancedError {
	return &EnhancedError{
		Code:     code,
		Message:  message,
		Cause:    err,
		Metadata: make(map[string]interface{}),
	}
}

// WithDetails adds detailed information about the error
func (e *EnhancedError) WithDetails(details string) *EnhancedError {
	e.Details = details
	return e
}

// WithSuggestion adds a suggestion on how to fix the error
func (e *EnhancedError) WithSuggestion(suggestion string) *EnhancedError {
	e.Suggestion = suggestion
	return e
}

// WithMetadata adds additional metadata to the error
func (e *EnhancedError) WithMetadata(key string, value interface{}) *EnhancedError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Common error constructors with pre-configured messages

// NewSQLGenerationError creates an error for SQL generation failures
func NewSQLGenerationError(err error) *EnhancedError {
	return Wrap(err, ErrCodeSQLGeneration, "Failed to generate SQL from question").
		WithDetails("The language model was unable to convert your question to a SQL statement").
		WithSuggestion("Try rephrasing the question around the sales data. For example: 'Total quantity sold per product' or 'Total revenue by city'.")
}

// NewUnsafeSQLError creates an error for statements blocked by the safety gate
func NewUnsafeSQLError(reason string) *EnhancedError {
	return New(ErrCodeUnsafeSQL, "SQL blocked by safety policy").
		WithDetails(reason).
		WithSuggestion("Only a single read-only SELECT statement is allowed. Remove any data-modifying keywords, comments, and extra statements.")
}

// NewNotSelectError creates an error for statements that are not SELECT
func NewNotSelectError() *EnhancedError {
	return New(ErrCodeNotSelect, "Only SELECT statements are allowed").
		WithDetails("The statement does not begin with SELECT").
		WithSuggestion("Ask a question that reads data; the service never modifies the database.")
}

// NewForbiddenTokenError creates an error for statements containing a blocked keyword
func NewForbiddenTokenError(token string) *EnhancedError {
	return New(ErrCodeForbiddenToken, "Statement contains a forbidden keyword").
		WithDetails(fmt.Sprintf("The statement contains the blocked token %q", token)).
		WithSuggestion("Data-modifying and schema-altering keywords cannot appear anywhere in the statement, including inside identifiers.").
		WithMetadata("token", token)
}

// NewMultipleStatementsError creates an error for multi-statement input
func NewMultipleStatementsError() *EnhancedError {
	return New(ErrCodeMultipleStatements, "Multiple SQL statements are not allowed").
		WithDetails("More than one semicolon was found").
		WithSuggestion("Submit exactly one SELECT statement, with at most one trailing semicolon.")
}

// NewQueryExecutionError creates an error for database execution failures
func NewQueryExecutionError(err error, sql string) *EnhancedError {
	return Wrap(err, ErrCodeQueryExecution, "SQL execution failed").
		WithDetails(fmt.Sprintf("The database rejected the statement: %v", err)).
		WithSuggestion("Check column and table names against the /api/v1/schema endpoint; the generator occasionally invents columns.").
		WithMetadata("sql", sql)
}

// NewDatabaseConnectionError creates an error for database connection failures
func NewDatabaseConnectionError(err error) *EnhancedError {
	return Wrap(err, ErrCodeDatabaseConnection, "Database connection failed").
		WithDetails("Unable to open the sales database file").
		WithSuggestion("Verify the DB_PATH setting points at an existing SQLite file; run the seed command to create the demo database.").
		WithMetadata("retryable", true)
}

// NewInvalidInputError creates an error for invalid input
func NewInvalidInputError(field string, reason string) *EnhancedError {
	return New(ErrCodeInvalidInput, "Invalid input").
		WithDetails(fmt.Sprintf("Field '%s' is invalid: %s", field, reason)).
		WithSuggestion("Please check the API documentation for the expected format and try again.")
}

// NewNoResultError creates an error for exports requested before any query ran
func NewNoResultError() *EnhancedError {
	return New(ErrCodeNoResult, "No query result available for this session").
		WithDetails("Exports return the most recent query result, and this session has none").
		WithSuggestion("Run a query first via /api/v1/ask or /api/v1/run, then request the export with the same X-Session-ID header.")
}

// NewExportError creates an error for export rendering failures
func NewExportError(err error, format string) *EnhancedError {
	return Wrap(err, ErrCodeExportFailed, "Failed to render export").
		WithDetails(fmt.Sprintf("Could not render the result as %s", format)).
		WithMetadata("format", format)
}

// NewSessionWriteError creates an error for session store failures
func NewSessionWriteError(err error) *EnhancedError {
	return Wrap(err, ErrCodeSessionWrite, "Failed to store session state").
		WithDetails("The session store rejected the write").
		WithSuggestion("This is an internal error; the query result is still returned in the response.").
		WithMetadata("retryable", true)
}
