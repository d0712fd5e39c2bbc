package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an AppError with the same code, so that
// errors.Is(err, errors.New(code, "", 0)) style checks work across wrapping.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError. A zero httpStatus picks the code's default.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	if httpStatus == 0 {
		httpStatus = HTTPStatusFor(code)
	}
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Newf creates an AppError with a formatted message and the code's default status.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...), 0)
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// CodeOf returns the code of the outermost AppError in err's chain, or
// ErrCodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}

// --- Common Error Constructors ---

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("%s not found", resource),
		HTTPStatus: HTTPStatusFor(ErrCodeNotFound), Details: details,
	}
}

// AlreadyExists creates a new AppError for a resource that already exists.
func AlreadyExists(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeAlreadyExists, Message: fmt.Sprintf("%s already exists", resource),
		HTTPStatus: HTTPStatusFor(ErrCodeAlreadyExists), Details: details,
	}
}

// IncompatibleConnection creates an AppError for a rejected pin connection.
func IncompatibleConnection(reason string) *AppError {
	return &AppError{
		Code: ErrCodeIncompatibleConnection, Message: reason,
		HTTPStatus: HTTPStatusFor(ErrCodeIncompatibleConnection),
	}
}

// CycleDetected creates an AppError for a cyclic graph.
func CycleDetected(path []string) *AppError {
	e := &AppError{
		Code: ErrCodeCycleDetected, Message: "graph contains cycles",
		HTTPStatus: HTTPStatusFor(ErrCodeCycleDetected),
	}
	if len(path) > 0 {
		e.Message = fmt.Sprintf("graph contains cycles: %s", strings.Join(path, " -> "))
		e.Details = map[string]any{"cycle": path}
	}
	return e
}

// ValidationFailed creates an AppError listing every collected validation error.
func ValidationFailed(messages []string) *AppError {
	return &AppError{
		Code:       ErrCodeValidationFailed,
		Message:    "graph validation failed: " + strings.Join(messages, "; "),
		HTTPStatus: HTTPStatusFor(ErrCodeValidationFailed),
		Details:    map[string]any{"errors": messages},
	}
}

// GraphBusy creates an AppError for an operation attempted during execution.
func GraphBusy(operation string) *AppError {
	return &AppError{
		Code: ErrCodeGraphBusy, Message: fmt.Sprintf("cannot %s while the graph is executing", operation),
		HTTPStatus: HTTPStatusFor(ErrCodeGraphBusy),
		Details:    map[string]any{"operation": operation},
	}
}

// NodeExecution wraps a node failure with the node's identity.
func NodeExecution(nodeName, nodeID string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeNodeExecution, Message: fmt.Sprintf("node %q failed", nodeName),
		HTTPStatus: HTTPStatusFor(ErrCodeNodeExecution),
		Details:    map[string]any{"node": nodeName, "node_id": nodeID},
		Cause:      cause,
	}
}

// UnknownNodeClass creates an AppError for an unregistered class name.
func UnknownNodeClass(className string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownNodeClass, Message: fmt.Sprintf("unknown node class %q", className),
		HTTPStatus: HTTPStatusFor(ErrCodeUnknownNodeClass),
		Details:    map[string]any{"class_name": className},
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("invalid input: %s", reason),
		HTTPStatus: HTTPStatusFor(ErrCodeInvalidInput), Details: details,
	}
}

// Validation creates a new AppError for request or config validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: HTTPStatusFor(ErrCodeInvalidInput),
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("missing required field: %s", field),
		HTTPStatus: HTTPStatusFor(ErrCodeMissingField),
		Details:    map[string]any{"field": field},
	}
}

// ImageIO creates an AppError for an image decode or encode failure.
func ImageIO(path string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeImageIO, Message: fmt.Sprintf("image i/o failed for %q", path),
		HTTPStatus: HTTPStatusFor(ErrCodeImageIO),
		Details:    map[string]any{"path": path},
		Cause:      cause,
	}
}

// ProjectLoad creates an AppError for an unreadable project file.
func ProjectLoad(path string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeProjectLoad, Message: fmt.Sprintf("cannot load project %q", path),
		HTTPStatus: HTTPStatusFor(ErrCodeProjectLoad),
		Details:    map[string]any{"path": path},
		Cause:      cause,
	}
}

// ProjectSave creates an AppError for an unwritable project file.
func ProjectSave(path string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeProjectSave, Message: fmt.Sprintf("cannot save project %q", path),
		HTTPStatus: HTTPStatusFor(ErrCodeProjectSave),
		Details:    map[string]any{"path": path},
		Cause:      cause,
	}
}

// Unauthorized creates a new AppError for unauthorized access.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "authentication required"
	}
	return &AppError{
		Code: ErrCodeUnauthorized, Message: reason,
		HTTPStatus: HTTPStatusFor(ErrCodeUnauthorized),
	}
}

// InvalidToken creates a new AppError for an invalid bearer token.
func InvalidToken(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInvalidToken, Message: "invalid authentication token",
		HTTPStatus: HTTPStatusFor(ErrCodeInvalidToken), Cause: cause,
	}
}

// Forbidden creates a new AppError for a token missing the required scope.
func Forbidden(scope string) *AppError {
	return &AppError{
		Code: ErrCodeForbidden, Message: fmt.Sprintf("scope %q required", scope),
		HTTPStatus: HTTPStatusFor(ErrCodeForbidden),
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "an unexpected error occurred",
		HTTPStatus: HTTPStatusFor(ErrCodeInternal), Cause: cause,
	}
}
