package rate

import "errors"

var (
	// ErrRateLimited is returned when a counter has reached its budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable wraps Redis failures.
	ErrUnavailable = errors.New("rate limiter unavailable")
)
