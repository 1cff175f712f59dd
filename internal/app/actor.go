package app

import (
	"context"
	"strings"
)

// AnonymousActor attributes mutations made without an authenticated caller.
const AnonymousActor = "anonymous"

// actorContextKey stores the mutation actor on a context.
type actorContextKey struct{}

// WithActor attaches the caller identity used for mutation attribution.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, strings.TrimSpace(actor))
}

// ActorFromContext returns the caller identity, or AnonymousActor.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey{}).(string)
	if actor == "" {
		return AnonymousActor
	}
	return actor
}
