package usecase

import (
	"errors"
	"fmt"

	"research-chat/internal/integrations/agentapi"
)

type ErrorCode string

const (
	ErrorTransport ErrorCode = "TRANSPORT_FAILURE"
	ErrorRemote    ErrorCode = "REMOTE_FAILURE"
	ErrorMalformed ErrorCode = "MALFORMED_RESPONSE"
)

var (
	// ErrChatPending is returned when a chat turn is submitted while the
	// previous one has not settled.
	ErrChatPending = errors.New("usecase: chat turn already pending")
	// ErrUploadPending is returned when a document is submitted while the
	// previous upload has not settled.
	ErrUploadPending = errors.New("usecase: document upload already pending")
)

type Error struct {
	Code   ErrorCode
	Reason string
	// Detail is the service's own explanation of a rejected call, if any.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type detailer interface {
	Detail() string
}

// classify sorts a remote call failure into the taxonomy used for logging.
// Users see the same outcome for every kind.
func classify(op string, err error) *Error {
	var statusErr httpStatusCoder
	if errors.As(err, &statusErr) {
		e := newError(ErrorRemote, fmt.Sprintf("%s_http_%d", op, statusErr.HTTPStatusCode()), err)
		var d detailer
		if errors.As(err, &d) {
			e.Detail = d.Detail()
		}
		return e
	}
	var malformed *agentapi.MalformedResponseError
	if errors.As(err, &malformed) {
		return newError(ErrorMalformed, op+"_malformed_response", err)
	}
	return newError(ErrorTransport, op+"_transport_error", err)
}
