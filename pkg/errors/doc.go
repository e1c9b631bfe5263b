// Package errors provides structured error handling with error codes for authcore.
//
// This package standardizes error handling across all packages with typed error codes,
// structured error details, and automatic HTTP status code mapping.
//
// # Basic Usage
//
// Creating errors with codes:
//
//	import "github.com/kandriws/authcore/pkg/errors"
//
//	// Create a simple error
//	err := errors.New(errors.ErrCodeNotFound, "token not found")
//
//	// Wrap an existing error
//	err := errors.Wrap(dbErr, errors.ErrCodeInternal, "failed to query database")
//
//	// Use convenience constructors
//	err := errors.NotFound("user", userID)
//	err := errors.InvalidCredentials()
//
// # Error Details
//
// Errors carry optional machine-readable details for the transport layer, such as
// attempt counts on throttled login failures:
//
//	err := errors.New(errors.ErrCodeOtpCodeInvalid, "invalid verification code").
//		WithDetail("attempts", attempts).
//		WithDetail("remaining_attempts", remaining)
//
// # HTTP Mapping
//
// Every code maps to an HTTP status hint via MapErrorCodeToHTTPStatus; domain
// errors propagate unmodified to the transport boundary, which renders them.
// Generic repository failures should be wrapped with ErrCodeInternal rather
// than leaking storage-specific error shapes.
package errors
