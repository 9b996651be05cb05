package catalogrpc

import "errors"

var (
	// ErrNoEndpoints indicates the provider returned no endpoints for the service.
	ErrNoEndpoints = errors.New("catalogrpc: no endpoints available")
	// ErrClosed is returned by calls on a closed Reader.
	ErrClosed = errors.New("catalogrpc: closed")
	// ErrNamingMismatch means the server computed a different unique name
	// than the client's cube metadata would, usually because the two sides
	// use different naming modes.
	ErrNamingMismatch = errors.New("catalogrpc: unique name mismatch")
)
