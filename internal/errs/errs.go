// Package errs defines the error taxonomy shared by the synthesis pipeline
// and the offline asset tools.
//
// Every error carries a Kind so that callers can decide whether to surface it
// (input validation), recover by descending to the next tier (external tool
// and container failures), or backfill (asset gaps).
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the pipeline reacts to it.
type Kind string

const (
	// KindInput is a malformed, missing or oversized request field. Never retried.
	KindInput Kind = "input_validation"

	// KindExternalTool is a failing synthesis subprocess or an absent/unreadable
	// resource. Recovered by advancing to the next tier.
	KindExternalTool Kind = "external_tool"

	// KindAssetGap is a required viseme or frame name with no candidate.
	// Recovered by backfill.
	KindAssetGap Kind = "asset_gap"

	// KindContainerParse is a malformed audio container. Recovered by using the
	// synthetic duration formula.
	KindContainerParse Kind = "container_parse"

	// KindInternal is a condition that should be unreachable by construction.
	KindInternal Kind = "internal"
)

// Code refines KindInput errors into the response classes transports map to
// status codes.
type Code string

const (
	CodeNone             Code = ""
	CodeUnprocessable    Code = "unprocessable"
	CodeTooLarge         Code = "too_large"
	CodeBadRequest       Code = "bad_request"
	CodeUnsupportedMedia Code = "unsupported_media"
)

// Error is the concrete error type used across the module.
type Error struct {
	Kind    Kind
	Code    Code
	Op      string
	Message string
	Cause   error

	// Allowed lists the accepted values when a field is outside an enumerated set.
	Allowed []string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error without a cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap attaches a kind to err. If err already is an *Error it is returned as-is
// so the innermost classification wins.
func Wrap(kind Kind, op, message string, err error) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	return &Error{Kind: kind, Op: op, Message: message, Cause: err}
}

// Input builds a validation error with the given response code.
func Input(code Code, op, message string, allowed ...string) *Error {
	return &Error{Kind: KindInput, Code: code, Op: op, Message: message, Allowed: allowed}
}

// IsKind reports whether any error in the chain matches the provided kind.
func IsKind(err error, kind Kind) bool {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindInternal
}

// CodeOf returns the response code of the first *Error in the chain.
func CodeOf(err error) Code {
	var target *Error
	if errors.As(err, &target) {
		return target.Code
	}
	return CodeNone
}

// AllowedOf returns the allowed-values list carried by err, if any.
func AllowedOf(err error) []string {
	var target *Error
	if errors.As(err, &target) {
		return target.Allowed
	}
	return nil
}
