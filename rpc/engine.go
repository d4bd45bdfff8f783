// Package rpc implements the synchronous request/response engine described
// in spec.md §4.7: a registered method table, one request decoded to one
// response, JSON error marshaling, and a server-wide rate limit.
// Grounded on the teacher's processControl dispatch-by-type switch
// (client.go) — decode one envelope, switch on a discriminator, respond —
// generalized from a fixed set of control-message types to an open,
// registered method table.
package rpc

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Request is the wire request envelope: {"method", "params"?, "kwargs"?}.
type Request struct {
	Method string         `json:"method"`
	Params []any          `json:"params,omitempty"`
	Kwargs map[string]any `json:"kwargs,omitempty"`
}

// Response is the wire response envelope: exactly one of Result or Error is
// set, per spec.md §4.7.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Handler is a registered RPC method. Methods that want keyword arguments
// take them from kwargs; methods that want positional arguments take them
// from params. A method may use either or both, per its own convention.
type Handler func(ctx context.Context, params []any, kwargs map[string]any) (any, error)

// MethodNotFoundError is wrapped into the response's Error string, never
// returned to Go callers directly (Dispatch always produces a Response).
type MethodNotFoundError struct {
	Method string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("method not found: %s", e.Method)
}

// Engine is a registered method table. Rate limiting is applied by Server,
// not by Engine.
type Engine struct {
	mu      sync.RWMutex
	methods map[string]Handler
}

// New constructs an empty Engine.
func New() *Engine {
	return &Engine{methods: make(map[string]Handler)}
}

// Register adds or replaces the handler for name.
func (e *Engine) Register(name string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.methods[name] = h
}

// Dispatch invokes the registered handler for req.Method, translating any
// error (including an unregistered method, or the handler panicking) into
// Response.Error rather than a Go error or a crashed connection — the wire
// contract never leaves a request unanswered.
func (e *Engine) Dispatch(ctx context.Context, req Request) (resp Response) {
	e.mu.RLock()
	h, ok := e.methods[req.Method]
	e.mu.RUnlock()
	if !ok {
		return Response{Error: (&MethodNotFoundError{Method: req.Method}).Error()}
	}
	defer func() {
		if r := recover(); r != nil {
			resp = Response{Error: fmt.Sprintf("method %q panicked: %v", req.Method, r)}
		}
	}()
	result, err := h(ctx, req.Params, req.Kwargs)
	if err != nil {
		return Response{Error: err.Error()}
	}
	return Response{Result: result}
}

// Limiter wraps a rate.Limiter; nil means unlimited. A Server applies its
// one Limiter to requests from all of its connections together.
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter constructs a Limiter allowing r requests/sec with the given
// burst. r <= 0 means unlimited.
func NewLimiter(r float64, burst int) *Limiter {
	if r <= 0 {
		return &Limiter{}
	}
	return &Limiter{rl: rate.NewLimiter(rate.Limit(r), burst)}
}

// Allow reports whether a request is permitted right now, without
// blocking. nil (unlimited) always allows.
func (l *Limiter) Allow() bool {
	if l == nil || l.rl == nil {
		return true
	}
	return l.rl.Allow()
}
