package auth

import (
	"context"

	"github.com/kobo-wallet/kobo/internal/credential"
	"github.com/kobo-wallet/kobo/internal/identity"
	"github.com/kobo-wallet/kobo/internal/session"
)

// Principal is the authenticated caller attached to a request.
type Principal struct {
	Claims  credential.Claims
	User    identity.User
	Session session.Session
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the caller placed by WithPrincipal.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
