package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeResolution marks a symbol that no strategy or naming
	// convention could map to a loadable unit.
	ErrorTypeResolution ErrorType = "resolution"
	// ErrorTypeConfiguration marks an invalid or missing tenant configuration.
	// It is fatal to tenant-context construction.
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeResource marks a failed resource construction step.
	ErrorTypeResource ErrorType = "resource"

	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// Configuration error codes.
const (
	CodeInvalidRuntimeVersion  = "INVALID_RUNTIME_VERSION"
	CodeInvalidConfigFile      = "INVALID_CONFIG_FILE"
	CodeMissingConfigFile      = "MISSING_CONFIG_FILE"
	CodeMissingSchema          = "MISSING_SCHEMA"
	CodeSafeModeOff            = "SAFE_MODE_OFF"
	CodeInvalidDatabaseHandler = "INVALID_DATABASE_HANDLER"
	CodeInvalidSessionHandler  = "INVALID_SESSION_HANDLER"
	CodeInvalidSessionSecurity = "INVALID_SESSION_SECURITY"
	CodeInvalidSessionTimeout  = "INVALID_SESSION_TIMEOUT"
	CodeInvalidResolver        = "INVALID_RESOLVER"
)

// Resource and resolution error codes.
const (
	CodeUnresolvedSymbol   = "UNRESOLVED_SYMBOL"
	CodeUnitTypeMismatch   = "UNIT_TYPE_MISMATCH"
	CodeUnknownRole        = "UNKNOWN_DATABASE_ROLE"
	CodeConnectFailed      = "CONNECT_FAILED"
	CodeUnknownTemplate    = "UNKNOWN_TEMPLATE_KIND"
	CodeMissingTemplate    = "MISSING_TEMPLATE_SECTION"
	CodeUnknownController  = "UNKNOWN_CONTROLLER"
	CodeLoggerSinkFailed   = "LOGGER_SINK_FAILED"
	CodeSessionStoreFailed = "SESSION_STORE_FAILED"
	CodeNotAcceptable      = "NOT_ACCEPTABLE"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	InnerError error                  `json:"-"`
	Stack      []string               `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Type)
	}
	if e.InnerError != nil {
		return msg + ": " + e.InnerError.Error()
	}
	return msg
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// WithMessage adds a message to the error
func (e *AppError) WithMessage(msg string) *AppError {
	e.Message = msg
	return e
}

// WithCode adds a code to the error
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithHTTPStatus sets the HTTP status code
func (e *AppError) WithHTTPStatus(status int) *AppError {
	e.HTTPStatus = status
	return e
}

// WithInnerError sets the inner error
func (e *AppError) WithInnerError(err error) *AppError {
	e.InnerError = err
	return e
}

// WithStack captures the call stack
func (e *AppError) WithStack() *AppError {
	e.Stack = captureStack(3)
	return e
}

// Is matches another *AppError by type and, when the target carries one, by code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if e.Type != t.Type {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// New creates a new AppError
func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Code:    string(errType),
	}
}

// FromError converts a standard error to AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		Type:       ErrorTypeUnknown,
		Message:    err.Error(),
		InnerError: err,
	}
}

// WrapWithType wraps an error with a specific type
func WrapWithType(err error, errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		InnerError: err,
		Code:       string(errType),
	}
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// CodeOf returns the code carried by err, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// NewConfiguration creates a configuration error with the given code.
func NewConfiguration(code, message string) *AppError {
	return New(ErrorTypeConfiguration, message).
		WithCode(code).
		WithHTTPStatus(http.StatusServiceUnavailable)
}

// NewResolution creates a resolution error for symbol.
func NewResolution(symbol string) *AppError {
	return New(ErrorTypeResolution, fmt.Sprintf("unable to resolve %s", symbol)).
		WithCode(CodeUnresolvedSymbol).
		WithDetail("symbol", symbol).
		WithHTTPStatus(http.StatusInternalServerError)
}

// NewResource creates a resource construction error for kind.
func NewResource(kind, code, message string) *AppError {
	return New(ErrorTypeResource, message).
		WithCode(code).
		WithDetail("kind", kind).
		WithHTTPStatus(http.StatusInternalServerError)
}

// NewNotFound creates a not-found error.
func NewNotFound(resource string, id interface{}) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id).
		WithHTTPStatus(http.StatusNotFound)
}

// NewValidation creates a validation error.
func NewValidation(message string) *AppError {
	return New(ErrorTypeValidation, message).WithHTTPStatus(http.StatusBadRequest)
}

// NewInternal creates an internal error.
func NewInternal(message string) *AppError {
	return New(ErrorTypeInternal, message).WithHTTPStatus(http.StatusInternalServerError)
}

// StatusOf returns the HTTP status carried by err, defaulting to 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus > 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// ErrorFormatter formats errors for display
type ErrorFormatter struct {
	showStack bool
	showInner bool
}

// NewErrorFormatter creates a new error formatter
func NewErrorFormatter(showStack bool, showInner bool) *ErrorFormatter {
	return &ErrorFormatter{
		showStack: showStack,
		showInner: showInner,
	}
}

// Format formats an error as a single line. Details are sorted by key.
func (f *ErrorFormatter) Format(err error) string {
	if err == nil {
		return ""
	}

	appErr := FromError(err)

	msg := appErr.Message
	if msg == "" {
		msg = string(appErr.Type)
	}
	parts := []string{fmt.Sprintf("[%s] %s", appErr.Type, msg)}

	if appErr.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", appErr.Code))
	}

	if len(appErr.Details) > 0 {
		keys := make([]string, 0, len(appErr.Details))
		for k := range appErr.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, appErr.Details[k]))
		}
	}

	if f.showStack && len(appErr.Stack) > 0 {
		parts = append(parts, "stack:")
		for _, s := range appErr.Stack {
			parts = append(parts, "  "+s)
		}
	}

	if f.showInner && appErr.InnerError != nil {
		parts = append(parts, "caused_by: "+appErr.InnerError.Error())
	}

	return strings.Join(parts, " | ")
}

// captureStack captures the call stack
func captureStack(skip int) []string {
	var stack []string
	for i := skip; i < 10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		funcName := fn.Name()
		if idx := strings.LastIndex(funcName, "/"); idx >= 0 {
			funcName = funcName[idx+1:]
		}

		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, funcName))
	}
	return stack
}
