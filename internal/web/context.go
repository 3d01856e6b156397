package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/jsonlcopy/internal/core"
)

// WithRequestMetadata tags ctx with the client address and the "http"
// session source for copy history.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, r.RemoteAddr) // already rewritten by TrustedRealIP
	return core.ContextWithSource(ctx, "http")
}
