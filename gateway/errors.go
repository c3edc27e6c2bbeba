package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a gateway failure.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConnectivity
	KindTimeout
	KindAuthentication
	KindTooManyAttempts
	KindNoGatewayFound
	KindHTTPStatus
	KindDecode
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindTimeout:
		return "timeout"
	case KindAuthentication:
		return "authentication"
	case KindTooManyAttempts:
		return "too_many_attempts"
	case KindNoGatewayFound:
		return "no_gateway_found"
	case KindHTTPStatus:
		return "http_status"
	case KindDecode:
		return "decode"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every gateway operation.
type Error struct {
	Kind ErrorKind

	// Op names the operation, e.g. "unified.cell".
	Op string

	// StatusCode is set for failures that carried an HTTP response.
	StatusCode int
	Method     string
	URL        string
	Body       string

	// Message is the human readable description shown to the user.
	Message string

	// URLs lists the probed test URLs for KindNoGatewayFound.
	URLs []string

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.URLs) > 0 {
		fmt.Fprintf(&b, " (tried %s)", strings.Join(e.URLs, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindUnknown when err is not a gateway
// error.
func KindOf(err error) ErrorKind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindUnknown
}

// IsKind reports whether err is a gateway error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// statusKind maps a non-2xx response status onto an error kind.
func statusKind(code int) ErrorKind {
	switch code {
	case http.StatusUnauthorized:
		return KindAuthentication
	case http.StatusTooManyRequests:
		return KindTooManyAttempts
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindHTTPStatus
	}
}

// statusError builds the error for a non-2xx response. The message carries the
// status, the request line and the response body when there is one.
func statusError(op string, resp *Response) *Error {
	items := []string{
		fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		fmt.Sprintf("{url==%s\nmethod==%s}", resp.URL, resp.Method),
	}
	body := string(resp.Body)
	if strings.TrimSpace(body) != "" {
		items = append(items, body)
	}

	return &Error{
		Kind:       statusKind(resp.StatusCode),
		Op:         op,
		StatusCode: resp.StatusCode,
		Method:     resp.Method,
		URL:        resp.URL,
		Body:       body,
		Message:    strings.Join(items, "\n"),
	}
}
