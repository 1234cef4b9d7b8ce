// Package common provides shared types and utilities used across the SPipeline framework.
package common

import (
	"net/http"
)

// Middleware is a function that wraps an http.Handler.
// The returned handler does its pre-processing, calls next exactly once, and then does its
// post-processing once next has returned. Stages are composed with MiddlewareChain.
type Middleware func(http.Handler) http.Handler
