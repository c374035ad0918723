package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeNotAuthenticated Code = "NOT_AUTHENTICATED"
	CodeNetwork          Code = "NETWORK_TRANSIENT"
	CodeRemoteRejected   Code = "REMOTE_REJECTED"
	CodeCredential       Code = "CREDENTIAL_FAILURE"
	CodeStorage          Code = "STORAGE_FAILURE"
	CodeInternal         Code = "INTERNAL_ERROR"

	CodeValidation    Code = "VALIDATION_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
	CodeStateConflict Code = "STATE_CONFLICT"
)

// Metadata describes how a code surfaces to callers. Queueable marks failures
// that the write path recovers from by handing the mutation to the outbox.
type Metadata struct {
	HTTPStatus     int
	Queueable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeNotAuthenticated: {
		HTTPStatus:    http.StatusUnauthorized,
		Queueable:     true,
		PublicMessage: "no active session",
	},
	CodeNetwork: {
		HTTPStatus:    http.StatusServiceUnavailable,
		Queueable:     true,
		PublicMessage: "network unavailable",
	},
	CodeRemoteRejected: {
		HTTPStatus:     http.StatusBadGateway,
		Queueable:      true,
		PublicMessage:  "remote service rejected the request",
		DetailsAllowed: true,
	},
	CodeCredential: {
		HTTPStatus:    http.StatusUnauthorized,
		PublicMessage: "credentials rejected",
	},
	CodeStorage: {
		HTTPStatus:    http.StatusInternalServerError,
		PublicMessage: "local storage failure",
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		PublicMessage: "internal error",
	},
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "resource not found",
	},
	CodeStateConflict: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "state transition disallowed",
		DetailsAllowed: true,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code of the outermost typed error in the chain, or
// CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsQueueable reports whether a failed immediate write should be handed to the outbox.
func IsQueueable(err error) bool {
	if err == nil {
		return false
	}
	return MetadataFor(CodeOf(err)).Queueable
}
