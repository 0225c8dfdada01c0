package backend

import (
	"errors"
	"fmt"
)

const (
	CodeNetworkFailure    = "NETWORK_FAILURE"
	CodeMalformedResponse = "MALFORMED_RESPONSE"
	CodeValidation        = "VALIDATION"
	CodeServerRejection   = "SERVER_REJECTION"
	CodeSuperseded        = "SUPERSEDED"
	CodeNotFound          = "NOT_FOUND"
	CodeUnavailable       = "UNAVAILABLE"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	// Status is the upstream HTTP status for server rejections.
	Status int
	Cause  error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// Validation builds a VALIDATION error with the given user-facing message.
func Validation(msg string) error {
	return &CodedError{Code: CodeValidation, Message: msg}
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	var coded *CodedError
	return errors.As(err, &coded) && coded.Code == code
}
