// Package retry decides which fetch failures are transient and how long to
// back off between attempts.
package retry

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Class is the retry classification of one attempt.
type Class int

// Class values.
const (
	Success Class = iota
	Retryable
	Fatal
)

// DefaultMaxAttempts is the attempt ceiling including the first try.
const DefaultMaxAttempts = 4

var retryableStatus = map[int]bool{
	http.StatusForbidden:           true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// LinearPolicy retries transient failures with a delay that grows by one
// step per attempt.
type LinearPolicy struct {
	maxAttempts int
	step        time.Duration
}

// NewLinearPolicy builds a policy. A non-positive maxAttempts falls back to
// DefaultMaxAttempts.
func NewLinearPolicy(maxAttempts int, step time.Duration) *LinearPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &LinearPolicy{maxAttempts: maxAttempts, step: step}
}

// MaxAttempts returns the attempt ceiling.
func (p *LinearPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// Classify maps an attempt outcome to a Class. A transport error with no
// status is retryable unless the context ended.
func (p *LinearPolicy) Classify(status int, err error) Class {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Fatal
		}
		return Retryable
	}
	switch {
	case status >= 200 && status < 300:
		return Success
	case retryableStatus[status]:
		return Retryable
	default:
		return Fatal
	}
}

// ShouldRetry reports whether another attempt may follow attempt (1-based).
func (p *LinearPolicy) ShouldRetry(class Class, attempt int) bool {
	return class == Retryable && attempt < p.maxAttempts
}

// Backoff returns the wait before the attempt following attempt (1-based).
func (p *LinearPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * p.step
}
