package main

import "errors"

// Config errors
var (
	ErrReadConfig       = errors.New("read config file")
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrInvalidLogFormat = errors.New("invalid log format")
	ErrOpenLogFile      = errors.New("open log file")
	ErrEventsFormat     = errors.New("unsupported events file")
	ErrNoEventsFile     = errors.New("no events file configured")
)

// Fetch errors
var (
	ErrInvalidHeader = errors.New("invalid header")
	ErrBuildRequest  = errors.New("build request")
	ErrFetch         = errors.New("fetch failed")
)
