package relay

import (
	"errors"
	"fmt"
)

// Relay failure kinds.
var (
	// ErrNoSuitableChannel means no channel can serve the request.
	ErrNoSuitableChannel = errors.New("relay: no suitable channel")
	// ErrUpstreamTimeout means the last attempt hit its deadline.
	ErrUpstreamTimeout = errors.New("relay: upstream timeout")
	// ErrUpstreamIO means the last attempt failed below HTTP (connect, reset, read).
	ErrUpstreamIO = errors.New("relay: upstream i/o error")
	// ErrUpstreamHTTP means the last attempt returned a 5xx status.
	ErrUpstreamHTTP = errors.New("relay: upstream http error")
)

// UpstreamError is the terminal failure of a relay after retries are exhausted.
type UpstreamError struct {
	Kind       error  // One of ErrUpstreamTimeout, ErrUpstreamIO, ErrUpstreamHTTP.
	ChannelID  uint64 // Channel of the last attempt.
	Attempts   int    // Attempts made, across channels when returned by Failover.
	StatusCode int    // Last observed status, 0 when no response arrived.
	Body       []byte // Last observed response body.
	Err        error  // Underlying transport error, nil for ErrUpstreamHTTP.
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%v: channel %d after %d attempts: %v", e.Kind, e.ChannelID, e.Attempts, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%v: channel %d after %d attempts: status %d", e.Kind, e.ChannelID, e.Attempts, e.StatusCode)
	default:
		return fmt.Sprintf("%v: channel %d after %d attempts", e.Kind, e.ChannelID, e.Attempts)
	}
}

// Unwrap returns the underlying transport error.
func (e *UpstreamError) Unwrap() error { return e.Err }

// Is matches the failure kind.
func (e *UpstreamError) Is(target error) bool { return target == e.Kind }
