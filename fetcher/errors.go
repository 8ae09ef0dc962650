package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Error kind labels surfaced in SiteCountResult.ErrorKind and metrics.
const (
	KindTimeout    = "timeout"
	KindHTTP       = "http_error"
	KindConnection = "connection_error"
	KindRedirect   = "redirect_error"
	KindParse      = "parse_error"
)

// ErrTimeout indicates the request exceeded the site's timeout.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrHTTP indicates a non-success HTTP status.
type ErrHTTP struct {
	StatusCode int
	Err        error
}

func (e ErrHTTP) Error() string {
	return fmt.Sprintf("http status %d: %v", e.StatusCode, e.Err)
}

func (e ErrHTTP) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrRedirect indicates the site answered by redirecting to an error page
// instead of returning an HTTP error status.
type ErrRedirect struct {
	FinalURL string
}

func (e ErrRedirect) Error() string {
	return fmt.Sprintf("redirected to error page: %s", e.FinalURL)
}

// ErrParse indicates extraction hit an unexpected condition. Distinct from
// the non-error "no strategy matched" outcome.
type ErrParse struct {
	Err error
}

func (e ErrParse) Error() string {
	return fmt.Errorf("parse: %w", e.Err).Error()
}

func (e ErrParse) Unwrap() error {
	return e.Err
}

// Kind maps a classified error to its taxonomy label.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return KindTimeout
	}
	var httpErr ErrHTTP
	if errors.As(err, &httpErr) {
		return KindHTTP
	}
	var redirect ErrRedirect
	if errors.As(err, &redirect) {
		return KindRedirect
	}
	var parse ErrParse
	if errors.As(err, &parse) {
		return KindParse
	}
	return KindConnection
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}

	if statusCode >= http.StatusBadRequest {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		return ErrHTTP{StatusCode: statusCode, Err: wrapped}
	}

	if err == nil {
		return nil
	}
	return ErrConnection{Err: err}
}
