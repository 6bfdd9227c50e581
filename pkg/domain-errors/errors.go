package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies domain failures so transports can translate them without
// inspecting error strings.
type Code string

const (
	CodeBadRequest        Code = "bad_request"
	CodeNotFound          Code = "not_found"
	CodeConflict          Code = "conflict"
	CodeIllegalTransition Code = "illegal_transition"
	CodeNotReady          Code = "not_ready"
	CodeCapacityExceeded  Code = "capacity_exceeded"
	CodeUnauthorized      Code = "unauthorized"
	CodeInternal          Code = "internal_error"
)

// Error carries a stable code plus a human-readable description. The
// description is safe to log; internal descriptions are not echoed to callers.
type Error struct {
	Code        Code
	Description string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// New builds a coded domain error.
func New(code Code, description string) Error {
	return Error{Code: code, Description: description}
}

// Newf builds a coded domain error with a formatted description.
func Newf(code Code, format string, args ...any) Error {
	return Error{Code: code, Description: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the domain error code, defaulting to CodeInternal for
// unclassified errors.
func CodeOf(err error) Code {
	var de Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code Code) bool {
	var de Error
	return errors.As(err, &de) && de.Code == code
}

// ToHTTPStatus maps a domain error code to an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeIllegalTransition:
		return http.StatusConflict
	case CodeNotReady:
		return http.StatusAccepted
	case CodeCapacityExceeded:
		return http.StatusTooManyRequests
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
