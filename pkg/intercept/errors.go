package intercept

import "errors"

var (
	ErrInvalidMapping  = errors.New("invalid url mapping")
	ErrMappingNotFound = errors.New("mapped file not found")
	ErrInvalidPath     = errors.New("mapped path escapes mapping root")
	ErrInterceptFailed = errors.New("request interception failed")

	// ErrBlocked marks an interceptor failure that refuses the request by
	// policy. Interceptors wrap it; other failures are faults.
	ErrBlocked = errors.New("request blocked by rule")
)
