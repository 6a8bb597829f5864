package auth

import "context"

type principalKey struct{}

// ContextWithPrincipal attaches the caller resolved by the gate. The raw
// bearer token is never stored.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller, if the request passed the gate.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.Identity.ID <= 0 {
		return Principal{}, false
	}
	return p, true
}

// ActingIdentity is the identity id forwarded to the data layer, or 0.
func ActingIdentity(ctx context.Context) int64 {
	p, _ := PrincipalFromContext(ctx)
	return p.Identity.ID
}
