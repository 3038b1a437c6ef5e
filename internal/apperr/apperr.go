// Copyright 2026 The Atelier Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package apperr defines the error taxonomy shared by the core services.
//
// Services return *Error values; the transport layer maps the Kind to a
// protocol status. Repositories keep returning their own sentinel errors and
// never construct *Error themselves.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// KindUnknown is reported for errors that carry no Kind.
	KindUnknown Kind = "UNKNOWN"

	KindUnauthenticated     Kind = "UNAUTHENTICATED"
	KindForbidden           Kind = "FORBIDDEN"
	KindNotFound            Kind = "NOT_FOUND"
	KindInvalidState        Kind = "INVALID_STATE"
	KindValidation          Kind = "VALIDATION"
	KindConflict            Kind = "CONFLICT"
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
)

// HTTPStatus maps a kind to the status code used at the HTTP boundary.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState, KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a categorized error returned by core operations.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Unauthenticated reports a missing or invalid identity.
func Unauthenticated(message string) *Error { return New(KindUnauthenticated, message) }

// Forbidden reports a role or tenant mismatch.
func Forbidden(message string) *Error { return New(KindForbidden, message) }

// NotFound reports an absent referenced entity.
func NotFound(message string) *Error { return New(KindNotFound, message) }

// InvalidState reports an illegal transition or unmet precondition.
func InvalidState(message string) *Error { return New(KindInvalidState, message) }

// Validation reports malformed input.
func Validation(message string) *Error { return New(KindValidation, message) }

// Conflict reports a lost optimistic-concurrency race.
func Conflict(message string) *Error { return New(KindConflict, message) }

// Upstream wraps a persistence failure.
func Upstream(message string, err error) *Error {
	return Wrap(KindUpstreamUnavailable, message, err)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the client-safe message of err, or a generic one.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}
