package omdb

import (
	"errors"
	"fmt"
	"strings"
)

// Failure classes surfaced by Fetch.
var (
	ErrUnauthorized = errors.New("omdb: unauthorized")
	ErrRateLimited  = errors.New("omdb: rate limited")
	ErrTimeout      = errors.New("omdb: timeout")
	ErrProvider     = errors.New("omdb: provider error")
	ErrTransport    = errors.New("omdb: transport error")
)

// Error describes a failed OMDb request. Kind is one of the sentinels above.
type Error struct {
	Kind       error
	StatusCode int
	Message    string
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": http %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " (after %d attempts)", e.Attempts)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrTransport)
}

// classifyMessage maps OMDb's payload error strings onto failure classes.
func classifyMessage(message string) error {
	lower := strings.ToLower(strings.TrimSpace(message))
	switch {
	case strings.Contains(lower, "invalid api key"),
		strings.Contains(lower, "no api key provided"),
		strings.Contains(lower, "not activated"):
		return ErrUnauthorized
	case strings.Contains(lower, "request limit reached"):
		return ErrRateLimited
	default:
		return ErrProvider
	}
}
