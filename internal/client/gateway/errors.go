package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind is the closed set of failure categories.
type Kind string

const (
	KindTimeout      Kind = "timeout"
	KindNetwork      Kind = "network"
	KindUnauthorized Kind = "unauthorized"
	KindServer       Kind = "server"
	KindClient       Kind = "client"
)

// Error is the one error type returned by the gateway.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Code    string
	Err     error
}

var (
	ErrTimeout      = &Error{Kind: KindTimeout, Message: "timeout"}
	ErrNetwork      = &Error{Kind: KindNetwork, Message: "network error"}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrServer       = &Error{Kind: KindServer, Message: "server error"}
	ErrClient       = &Error{Kind: KindClient, Message: "client error"}
)

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind, so
// errors.Is(err, ErrTimeout) matches every timeout.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of a gateway error, or "" for any other error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether trying the same call later may succeed.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindTimeout, KindNetwork, KindServer:
		return true
	case KindClient:
		return e.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

const (
	msgTimeout       = "Request timed out. Please check your connection and try again."
	msgCanceled      = "Request was canceled."
	msgConnection    = "Unable to connect to the server. Please check your internet connection."
	msgUnauthorized  = "Your session has expired. Please sign in again."
	msgServerRetry   = "Server error. Please try again in a moment."
	msgUnavailable   = "Service temporarily unavailable. Please try again later."
	msgNotFound      = "This feature is not available. Please update the app."
	msgBadResponse   = "Received an invalid response from the server."
	msgInvalidBody   = "Request could not be prepared."
	msgImageUnusable = "Receipt image could not be read."
)

// classifyTransport maps a failure that produced no response.
func classifyTransport(err error) *Error {
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return &Error{Kind: KindTimeout, Message: msgTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindNetwork, Message: msgCanceled, Err: err}
	default:
		return &Error{Kind: KindNetwork, Message: msgConnection, Err: err}
	}
}

// classifyStatus maps a non-2xx response. Bodies that are not JSON (for
// example an HTML error page from a proxy) are ignored.
func classifyStatus(status int, body []byte) *Error {
	msg, code := parseErrorBody(body)
	e := &Error{Status: status, Code: code}

	switch {
	case status == http.StatusUnauthorized:
		e.Kind, e.Message = KindUnauthorized, msgUnauthorized
	case status == http.StatusInternalServerError:
		e.Kind, e.Message = KindServer, msgServerRetry
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable:
		e.Kind, e.Message = KindServer, msgUnavailable
	case status == http.StatusNotFound:
		e.Kind, e.Message = KindClient, msgNotFound
	case status >= 500:
		e.Kind = KindServer
		e.Message = orDefault(msg, fmt.Sprintf("Server error (HTTP %d). Please try again later.", status))
	default:
		e.Kind = KindClient
		e.Message = orDefault(msg, fmt.Sprintf("Request failed with HTTP status %d.", status))
	}
	return e
}

// parseErrorBody pulls a message and code out of the error shapes the
// backend is known to send.
func parseErrorBody(body []byte) (msg, code string) {
	var m map[string]any
	if len(body) == 0 || json.Unmarshal(body, &m) != nil {
		return "", ""
	}

	msg = firstString(m, "message", "error", "detail")
	if msg == "" {
		if inner, ok := m["error"].(map[string]any); ok {
			msg = firstString(inner, "message", "detail")
			code = firstString(inner, "code")
		}
	}
	if msg == "" {
		if list, ok := m["errors"].([]any); ok && len(list) > 0 {
			if first, ok := list[0].(map[string]any); ok {
				msg = firstString(first, "message", "msg")
			}
		}
	}
	if code == "" {
		code = firstString(m, "code", "error_code", "errorCode")
	}
	return msg, code
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
