// Package errors provides the structured error type used across pixelflow.
// Every error carries a machine-readable code, an HTTP status for the API
// layer, optional details and an optional cause that stays visible to
// errors.Is and errors.As.
package errors
