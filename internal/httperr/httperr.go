// Package httperr defines the error taxonomy shared by the validator,
// codec, and fetcher: a client-visible (status, message) pair versus
// everything else, which is an internal error.
package httperr

import (
	"errors"
	"fmt"
)

// ClientError carries a status code and a stable message that is safe to
// send to the client verbatim.
type ClientError struct {
	Status  int
	Message string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// New builds a ClientError.
func New(status int, message string) *ClientError {
	return &ClientError{Status: status, Message: message}
}

// AsClientError reports whether err is (or wraps) a *ClientError.
func AsClientError(err error) (*ClientError, bool) {
	var ce *ClientError
	ok := errors.As(err, &ce)
	return ce, ok
}
