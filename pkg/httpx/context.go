package httpx

import (
	"context"

	"github.com/civicworks/townhall/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeySubject ctxKey = "subject"
	CtxKeyToken   ctxKey = "token"
)

// SubjectFromContext returns the authenticated subject injected by AuthnMiddleware.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(CtxKeySubject).(string)
	return s, ok && s != ""
}

// TokenFromContext returns the verified access token injected by AuthnMiddleware.
func TokenFromContext(ctx context.Context) (jwtx.Token, bool) {
	t, ok := ctx.Value(CtxKeyToken).(jwtx.Token)
	return t, ok
}

func contextWithToken(ctx context.Context, t jwtx.Token) context.Context {
	ctx = context.WithValue(ctx, CtxKeySubject, t.Subject)
	ctx = context.WithValue(ctx, CtxKeyToken, t)
	return ctx
}
