package parley

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotConnected is returned by transport operations on a closed or
// never-opened session.
var ErrNotConnected = errors.New("parley: not connected")

// ErrCallTimeout is returned by Transport.Call when no acknowledgement
// arrives within the call's timeout.
var ErrCallTimeout = errors.New("parley: call timed out")

// ErrLoginTimeout is returned by Client.Login when the broker sends no login
// response in time. Login is not retried automatically.
var ErrLoginTimeout = errors.New("parley: login timed out")

// ErrNotLoggedIn is returned by operations that need an authenticated
// session before one exists.
var ErrNotLoggedIn = errors.New("parley: not logged in")

// ErrLLM reports a provider-level failure that is not an HTTP error.
type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP reports a non-2xx HTTP response from a provider or the broker's
// signup endpoint. RetryAfter carries the parsed Retry-After header, if any.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}
