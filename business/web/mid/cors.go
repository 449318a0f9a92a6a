package mid

import (
	"context"
	"net/http"

	"github.com/ardanlabs/nakamoto/foundation/web"
)

// Cors lets browser clients on the specified origin call the public API.
// Only the methods the API routes use are allowed.
func Cors(origin string) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			hdr := w.Header()
			hdr.Set("Access-Control-Allow-Origin", origin)
			hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			hdr.Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length")
			hdr.Set("Access-Control-Max-Age", "86400")

			return handler(ctx, w, r)
		}

		return h
	}

	return m
}
