package reqctx

import (
	"context"
	"time"
)

type metaKey struct{}

// RequestMeta is what the request-id middleware knows about an inbound call.
type RequestMeta struct {
	RequestID  string
	ClientIP   string
	UserAgent  string
	ReceivedAt time.Time
}

func WithRequestMeta(ctx context.Context, meta *RequestMeta) context.Context {
	return context.WithValue(ctx, metaKey{}, meta)
}

// RequestMetaFromContext returns nil, false outside an HTTP request, e.g. in
// workers and CLI commands.
func RequestMetaFromContext(ctx context.Context) (*RequestMeta, bool) {
	meta, ok := ctx.Value(metaKey{}).(*RequestMeta)
	return meta, ok && meta != nil
}

func RequestIDFromContext(ctx context.Context) string {
	if meta, ok := RequestMetaFromContext(ctx); ok {
		return meta.RequestID
	}
	return ""
}
