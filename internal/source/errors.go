package source

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrorKind classifies a source failure. Failures are isolated per source: an
// errored source never aborts another source's fetch or merge.
type ErrorKind int

const (
	// ErrNetwork covers transport failures, timeouts, and unexpected
	// upstream status codes.
	ErrNetwork ErrorKind = iota
	// ErrUnauthorized means credentials were rejected (401/403).
	ErrUnauthorized
	// ErrNotFound means the requested item no longer exists upstream (404).
	ErrNotFound
	// ErrRateLimited means the upstream throttled us (429).
	ErrRateLimited
	// ErrMalformed means the upstream response could not be decoded.
	ErrMalformed
)

// String returns a human-readable representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrNetwork:
		return "network"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrNotFound:
		return "not found"
	case ErrRateLimited:
		return "rate limited"
	case ErrMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is the failure type every adapter returns. It carries the source
// identity so the merge engine can attribute it without unwrapping.
type Error struct {
	Kind   ErrorKind
	Source string
	// RetryAfter is upstream's requested backoff, set for ErrRateLimited
	// when the response carried a Retry-After header.
	RetryAfter time.Duration
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s: %s", e.Source, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a source.Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}

// netErr wraps a transport-level failure. Timeouts land here too.
func netErr(sourceID string, err error) *Error {
	return &Error{Kind: ErrNetwork, Source: sourceID, Err: err}
}

// decodeErr wraps a response-body decoding failure.
func decodeErr(sourceID string, err error) *Error {
	return &Error{Kind: ErrMalformed, Source: sourceID, Err: err}
}

// statusErr maps an unexpected HTTP response onto the error taxonomy.
func statusErr(sourceID string, resp *http.Response, body string) *Error {
	e := &Error{
		Source:  sourceID,
		Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, body),
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Kind = ErrUnauthorized
	case http.StatusNotFound:
		e.Kind = ErrNotFound
	case http.StatusTooManyRequests:
		e.Kind = ErrRateLimited
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
	default:
		e.Kind = ErrNetwork
	}
	return e
}
