package authcore

import "context"

type contextKey int

const clientIPKey contextKey = iota

// WithClientIP attaches the caller's IP to the context. Audit events
// emitted for that request carry the IP; absent, the field is empty.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the IP stored by WithClientIP, or "".
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
