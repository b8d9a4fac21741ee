// Package requestcontext provides transport-independent context accessors for
// request-scoped values.
//
// Values are set at the process edge (ops HTTP handlers, the monitoring
// scheduler) and consumed by services. Keeping this package free of net/http
// lets pure domain code read correlation data without transport imports.
//
// Usage in services (read values):
//
//	now := requestcontext.Now(ctx)
//	actor := requestcontext.Actor(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	actorKey       struct{}
	requestTimeKey struct{}
)

// ActorSystem is the actor recorded for scheduled batch work where no human
// or API caller initiated the operation.
const ActorSystem = "system"

// WithRequestID stores a correlation identifier for the current operation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the correlation identifier, or "" when unset.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithActor stores the acting principal (operator identifier or ActorSystem).
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Actor returns the acting principal, defaulting to ActorSystem so background
// work never emits audit records with an empty actor.
func Actor(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok && v != "" {
		return v
	}
	return ActorSystem
}

// WithTime pins the observed wall clock for the operation. Tests use this to
// make time-dependent logic deterministic.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the pinned operation time, falling back to time.Now().
func Now(ctx context.Context) time.Time {
	if v, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return v
	}
	return time.Now()
}
