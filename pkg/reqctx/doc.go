// Package reqctx carries request-scoped metadata.
//
// Keys are private; use the With*/FromContext pairs:
//
//	ctx = reqctx.WithRequestMeta(ctx, &reqctx.RequestMeta{RequestID: rid})
//	rid := reqctx.RequestIDFromContext(ctx)
//
// The authenticated caller travels separately through authorize.WithCaller.
package reqctx
