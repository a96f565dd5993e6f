package api

import "context"

type contextKey struct{}

// requestInfo is attached once per request and filled in by handlers, so
// the access log (which wraps them) can see what they learned.
type requestInfo struct {
	id     string
	signer string
}

func withRequestInfo(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, &requestInfo{id: id})
}

func infoFromCtx(ctx context.Context) *requestInfo {
	if info, ok := ctx.Value(contextKey{}).(*requestInfo); ok {
		return info
	}
	return &requestInfo{}
}

func setSigner(ctx context.Context, signer string) {
	infoFromCtx(ctx).signer = signer
}
