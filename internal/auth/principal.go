package auth

import "context"

// Principal is the authenticated caller of a request. Credential is the raw
// Authorization header, kept so it can be forwarded to the event service.
type Principal struct {
	UserID     int64
	Credential string
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller, or false for anonymous requests.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID > 0
}
