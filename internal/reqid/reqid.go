// Package reqid carries a per-request id through context.Context so that
// events raised while serving one admin request can be correlated.
package reqid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Header is the HTTP header a caller may use to supply its own id.
const Header = "X-Request-Id"

type key struct{}

// NewContext stores id in a copy of parent. An empty id is replaced with a
// random one. The stored id is returned.
func NewContext(parent context.Context, id string) (context.Context, string) {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(parent, key{}, id), id
}

// FromRequest is NewContext for an incoming request, honoring Header.
func FromRequest(r *http.Request) (context.Context, string) {
	return NewContext(r.Context(), r.Header.Get(Header))
}

// FromContext extracts the request id from ctx.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(key{}).(string)
	return id, ok
}
