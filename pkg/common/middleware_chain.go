// Package common provides common utilities and interfaces for the SPipeline framework.
package common

import (
	"net/http"
)

// MiddlewareChain is an ordered list of pipeline stages.
// Registration order is significant: the first stage sees the request first and
// the response last.
type MiddlewareChain []Middleware

// NewMiddlewareChain creates a new middleware chain
func NewMiddlewareChain(middlewares ...Middleware) MiddlewareChain {
	result := make(MiddlewareChain, 0, len(middlewares))
	return append(result, middlewares...)
}

// Append returns a new chain with middlewares added to the end.
// The receiver is never modified, so two chains appended from the same base do not share stages.
func (c MiddlewareChain) Append(middlewares ...Middleware) MiddlewareChain {
	result := make(MiddlewareChain, 0, len(c)+len(middlewares))
	result = append(result, c...)
	return append(result, middlewares...)
}

// AppendIf appends middlewares only when cond is true.
func (c MiddlewareChain) AppendIf(cond bool, middlewares ...Middleware) MiddlewareChain {
	if !cond {
		return c
	}
	return c.Append(middlewares...)
}

// Prepend adds middleware to the beginning of the chain
func (c MiddlewareChain) Prepend(middlewares ...Middleware) MiddlewareChain {
	result := make(MiddlewareChain, len(middlewares)+len(c))
	copy(result, middlewares)
	copy(result[len(middlewares):], c)
	return result
}

// Len returns the number of stages in the chain.
func (c MiddlewareChain) Len() int {
	return len(c)
}

// Then applies the middleware chain to a handler.
// Stages are wrapped from the last to the first, so c[0] is the outermost scope.
// Nil stages are skipped.
func (c MiddlewareChain) Then(h http.Handler) http.Handler {
	if h == nil {
		h = http.NotFoundHandler()
	}
	for i := len(c) - 1; i >= 0; i-- {
		if c[i] == nil {
			continue
		}
		h = c[i](h)
	}
	return h
}
