package proxy

import "errors"

var (
	ErrListen   = errors.New("proxy listen failed")
	ErrServe    = errors.New("proxy serve failed")
	ErrShutdown = errors.New("proxy shutdown failed")
)
