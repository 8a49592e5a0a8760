package underwriter

import (
	failure "github.com/hatsunemiku3939/underwriter/policy/failure"
	"github.com/hatsunemiku3939/underwriter/types"
)

// RouterOption configures a Router at construction time.
type RouterOption func(*Router)

// WithFailurePolicy sets a custom failure policy for the Router.
func WithFailurePolicy(p failure.Policy) RouterOption {
	return func(r *Router) { r.failurePolicy = p }
}

// WithRoutingPolicy sets a custom routing policy for the Router.
func WithRoutingPolicy(p types.RoutingPolicy) RouterOption {
	return func(r *Router) { r.routingPolicy = p }
}

// WithMiddleware installs middlewares at construction time, outermost first.
func WithMiddleware(mw ...Middleware) RouterOption {
	return func(r *Router) { r.middlewares = append(r.middlewares, mw...) }
}
