package core

import "context"

type contextKey string

const ctxKeyClient contextKey = "client_info"

// ClientInfo identifies the caller of a request for the audit trail.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// WithClientInfo stores the caller's address and user agent in ctx.
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, ctxKeyClient, info)
}

// ClientInfoFrom returns the caller info stored by WithClientInfo.
func ClientInfoFrom(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(ctxKeyClient).(ClientInfo)
	return info
}
