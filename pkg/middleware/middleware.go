// Package middleware provides the HTTP middleware wrapped around
// resource registries: request IDs, access logging, and panic recovery,
// composed through a small chain helper.
package middleware

import (
	"net/http"
)

// Middleware is a function that wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain is a composable sequence of middleware.
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a chain from the given middleware.
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: middlewares}
}

// Use appends a middleware to the chain.
func (c *Chain) Use(m Middleware) *Chain {
	c.middlewares = append(c.middlewares, m)
	return c
}

// Apply wraps the handler with every middleware in the chain. The
// middleware added first executes first.
func (c *Chain) Apply(handler http.Handler) http.Handler {
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i](handler)
	}
	return handler
}

// Then is an alias for Apply.
func (c *Chain) Then(handler http.Handler) http.Handler {
	return c.Apply(handler)
}

// ThenFunc wraps an http.HandlerFunc with the chain.
func (c *Chain) ThenFunc(handlerFunc http.HandlerFunc) http.Handler {
	return c.Apply(handlerFunc)
}

// Append returns a new chain with additional middleware, leaving the
// receiver untouched.
func (c *Chain) Append(middlewares ...Middleware) *Chain {
	combined := make([]Middleware, len(c.middlewares)+len(middlewares))
	copy(combined, c.middlewares)
	copy(combined[len(c.middlewares):], middlewares)
	return &Chain{middlewares: combined}
}

// Extend adds multiple middleware to the chain in place.
func (c *Chain) Extend(middlewares ...Middleware) *Chain {
	c.middlewares = append(c.middlewares, middlewares...)
	return c
}
