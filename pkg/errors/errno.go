// Package errors provides the structured error codes used by pg-watcher.
//
// Codes use the AABBCCC layout: AA is the service (00 common, 30 watcher),
// BB the category (08 database, 10 network, 12 config, ...) and CCC a
// sequence within the category. Each Errno also carries the HTTP and gRPC
// status a host API should answer with.
//
//	if err := w.Update(); stderrors.Is(err, errors.ErrWatcherConnection) {
//	    // database unreachable
//	}
package errors

import (
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/grpc/codes"
)

// Errno is a registered error code with its status mappings and an
// optional cause.
type Errno struct {
	Code      int        `json:"code"`
	HTTP      int        `json:"-"`
	GRPCCode  codes.Code `json:"-"`
	MessageEN string     `json:"message"`
	MessageZH string     `json:"message_zh,omitempty"`

	cause error
}

func (e *Errno) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("errno %d: %s: %v", e.Code, e.MessageEN, e.cause)
	}
	return fmt.Sprintf("errno %d: %s", e.Code, e.MessageEN)
}

// Unwrap returns the cause.
func (e *Errno) Unwrap() error {
	return e.cause
}

// Is matches any Errno with the same code, so wrapped copies still compare
// equal to the registered value.
func (e *Errno) Is(target error) bool {
	t, ok := target.(*Errno)
	return ok && e.Code == t.Code
}

func (e *Errno) clone() *Errno {
	c := *e
	return &c
}

// WithCause returns a copy of e wrapping cause.
func (e *Errno) WithCause(cause error) *Errno {
	c := e.clone()
	c.cause = cause
	return c
}

// WithMessage returns a copy of e with a different English message.
func (e *Errno) WithMessage(msg string) *Errno {
	c := e.clone()
	c.MessageEN = msg
	return c
}

// WithMessagef is WithMessage with formatting.
func (e *Errno) WithMessagef(format string, args ...interface{}) *Errno {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// HTTPStatus returns the HTTP status, 500 when unset.
func (e *Errno) HTTPStatus() int {
	if e.HTTP != 0 {
		return e.HTTP
	}
	return http.StatusInternalServerError
}

// GRPCStatus returns the gRPC code, Internal when unset.
func (e *Errno) GRPCStatus() codes.Code {
	if e.GRPCCode != codes.OK {
		return e.GRPCCode
	}
	return codes.Internal
}

var (
	errnoRegistry = make(map[int]*Errno)
	registryMu    sync.RWMutex
)

func register(e *Errno) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := errnoRegistry[e.Code]; ok {
		return fmt.Errorf("errno code %d already registered: %s", e.Code, existing.MessageEN)
	}
	errnoRegistry[e.Code] = e
	return nil
}

// Register records e and panics if its code is taken.
func Register(e *Errno) *Errno {
	if err := register(e); err != nil {
		panic(err)
	}
	return e
}
