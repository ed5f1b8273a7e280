package server

import (
	"errors"
	"fmt"
	"strings"
)

// Lifecycle errors.
var (
	ErrNoListeners    = errors.New("server: neither HTTP nor HTTPS is configured")
	ErrAlreadyRunning = errors.New("server: already running")
)

// BindError is returned by Start when a listener cannot be bound.
type BindError struct {
	Scheme string
	Addr   string
	Err    error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("server: binding %s listener on %s: %v", e.Scheme, e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// ShutdownError collects faults while releasing listeners. The server is
// stopped even when Stop returns it.
type ShutdownError struct {
	Errs []error
}

func (e *ShutdownError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return "server: shutdown: " + strings.Join(msgs, "; ")
}

func (e *ShutdownError) Unwrap() []error { return e.Errs }
