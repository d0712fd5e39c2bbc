package errors

import "net/http"

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Resource errors
const (
	// ErrCodeNotFound indicates the requested node, pin, connection or run was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates the resource already exists.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	// ErrCodeUnknownNodeClass indicates a class name with no registered factory.
	ErrCodeUnknownNodeClass ErrorCode = "UNKNOWN_NODE_CLASS"
)

// Graph structure errors
const (
	// ErrCodeIncompatibleConnection indicates a connection that violates pin direction or type rules.
	ErrCodeIncompatibleConnection ErrorCode = "INCOMPATIBLE_CONNECTION"
	// ErrCodeCycleDetected indicates the graph contains a cycle.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"
	// ErrCodeValidationFailed indicates the graph failed validation before a run.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrCodeGraphBusy indicates the graph is executing and cannot be mutated or re-run.
	ErrCodeGraphBusy ErrorCode = "GRAPH_BUSY"
	// ErrCodeAmbiguousInput indicates a single-value read of an input with several connections.
	ErrCodeAmbiguousInput ErrorCode = "AMBIGUOUS_INPUT"
	// ErrCodeInvalidPinWrite indicates a value write to an input pin.
	ErrCodeInvalidPinWrite ErrorCode = "INVALID_PIN_WRITE"
)

// Execution errors
const (
	// ErrCodeNodeExecution indicates a node body returned an error or panicked.
	ErrCodeNodeExecution ErrorCode = "NODE_EXECUTION_FAILED"
	// ErrCodeImageIO indicates an image could not be decoded or encoded.
	ErrCodeImageIO ErrorCode = "IMAGE_IO_FAILED"
)

// Project errors
const (
	// ErrCodeProjectLoad indicates a project file could not be read or parsed.
	ErrCodeProjectLoad ErrorCode = "PROJECT_LOAD_FAILED"
	// ErrCodeProjectSave indicates a project file could not be written.
	ErrCodeProjectSave ErrorCode = "PROJECT_SAVE_FAILED"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Authentication errors
const (
	// ErrCodeUnauthorized indicates the request is unauthorized.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeInvalidToken indicates the bearer token is invalid or expired.
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
	// ErrCodeForbidden indicates a valid token that lacks the required scope.
	ErrCodeForbidden ErrorCode = "FORBIDDEN"
	// ErrCodeRateLimited indicates the client exceeded its request budget.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var httpStatusByCode = map[ErrorCode]int{
	ErrCodeNotFound:               http.StatusNotFound,
	ErrCodeAlreadyExists:          http.StatusConflict,
	ErrCodeUnknownNodeClass:       http.StatusBadRequest,
	ErrCodeIncompatibleConnection: http.StatusBadRequest,
	ErrCodeCycleDetected:          http.StatusUnprocessableEntity,
	ErrCodeValidationFailed:       http.StatusUnprocessableEntity,
	ErrCodeGraphBusy:              http.StatusConflict,
	ErrCodeAmbiguousInput:         http.StatusUnprocessableEntity,
	ErrCodeInvalidPinWrite:        http.StatusBadRequest,
	ErrCodeNodeExecution:          http.StatusUnprocessableEntity,
	ErrCodeImageIO:                http.StatusUnprocessableEntity,
	ErrCodeProjectLoad:            http.StatusBadRequest,
	ErrCodeProjectSave:            http.StatusInternalServerError,
	ErrCodeInvalidInput:           http.StatusBadRequest,
	ErrCodeMissingField:           http.StatusBadRequest,
	ErrCodeUnauthorized:           http.StatusUnauthorized,
	ErrCodeInvalidToken:           http.StatusUnauthorized,
	ErrCodeForbidden:              http.StatusForbidden,
	ErrCodeRateLimited:            http.StatusTooManyRequests,
	ErrCodeInternal:               http.StatusInternalServerError,
}

// HTTPStatusFor returns the recommended HTTP status for a code.
func HTTPStatusFor(code ErrorCode) int {
	if s, ok := httpStatusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}
