package reddit

import (
	"errors"
	"fmt"
)

// ErrRecipientNotFound indicates a direct message target that does not exist
// (deleted, shadowbanned or misspelled account). Non-fatal for batch sends.
var ErrRecipientNotFound = errors.New("recipient not found")

// ErrWikiPageNotFound indicates a missing wiki page. Fatal at startup.
var ErrWikiPageNotFound = errors.New("wiki page not found")

// ServerError is a 5xx response from Reddit.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("reddit server error: status %d", e.StatusCode)
}

// ResponseError is a non-2xx, non-5xx response, or a response body that
// could not be decoded.
type ResponseError struct {
	StatusCode int
	Err        error
}

func (e *ResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reddit response error: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("reddit response error: status %d", e.StatusCode)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

// RequestError is a transport-level failure (DNS, TLS, timeout, connection).
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("reddit request error: %v", e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err belongs to the recoverable upstream class:
// server, response or request errors. The stream loop backs off and resumes
// on these instead of escalating.
func IsTransient(err error) bool {
	var serverErr *ServerError
	var responseErr *ResponseError
	var requestErr *RequestError

	return errors.As(err, &serverErr) || errors.As(err, &responseErr) || errors.As(err, &requestErr)
}
