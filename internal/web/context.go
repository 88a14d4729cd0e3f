package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/web/middleware"
)

// withClientInfo adds the client address and user agent to ctx for the
// audit trail. TrustedRealIP has already resolved the address.
func withClientInfo(ctx context.Context, r *http.Request) context.Context {
	return core.WithClientInfo(ctx, core.ClientInfo{
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
}
