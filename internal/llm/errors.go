package llm

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"syscall"
)

// TransportError reports a failed exchange with the model server: the
// request could not be delivered, the connection broke, the attempt timed out,
// or a gateway answered in place of the server.
type TransportError struct {
	Op         string
	StatusCode int
	Timeout    bool
	Transient  bool
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("llm %s: timed out: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("llm %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ResponseError is a well-formed error reply from the model server, such as
// an unknown model or an oversized prompt. Repeating the request will not help.
type ResponseError struct {
	StatusCode int
	Message    string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("llm rejected request: status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether err is a transient transport failure worth one
// more attempt. Timeouts are excluded.
func Retryable(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.Transient && !te.Timeout
}

func transientCause(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
