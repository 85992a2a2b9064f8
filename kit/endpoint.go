// Package kit provides transport-agnostic endpoint plumbing: an Endpoint is
// a typed request/response function, Middleware wraps endpoints, and the MCP
// transport adapter exposes an endpoint as an MCP tool. The same endpoint can
// be served over HTTP and MCP without duplicating the handler body.
package kit

import "context"

// Endpoint is a single request/response interaction. Request and response
// are typed by the transport decode/encode layer.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first one listed is the outermost:
// Chain(a, b, c)(ep) runs a(b(c(ep))).
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
