// Package ctxutil provides context utilities that can be safely imported anywhere.
// It depends only on models to avoid import cycles.
package ctxutil

import (
	"context"

	"github.com/example/dispatch/internal/models"
)

// ActorKey is the context key for the acting operator.
// Exported so it can be used consistently across packages.
type ActorKey struct{}

// WithActor returns a context carrying the acting operator or SYSTEM.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, ActorKey{}, actor)
}

// WithActorID parses id ("SYSTEM" or an operator id) and embeds it.
func WithActorID(ctx context.Context, id string) context.Context {
	return WithActor(ctx, models.ParseActor(id))
}

// ActorFromContext returns the actor from context, or the zero Actor if not set.
func ActorFromContext(ctx context.Context) models.Actor {
	if v, ok := ctx.Value(ActorKey{}).(models.Actor); ok {
		return v
	}
	return models.Actor{}
}
