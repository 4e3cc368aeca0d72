// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithAuth/FromContext for propagating auth info via context

package auth

import (
	"context"
)

// outcomeKey is the key type for storing an Outcome in context.Context.
type outcomeKey struct{}

// WithAuth returns a new context with the authentication Outcome attached.
func WithAuth(ctx context.Context, outcome *Outcome) context.Context {
	return context.WithValue(ctx, outcomeKey{}, outcome)
}

// FromContext retrieves the Outcome from the context, returning nil if not present.
func FromContext(ctx context.Context) *Outcome {
	val := ctx.Value(outcomeKey{})
	if val == nil {
		return nil
	}
	outcome, ok := val.(*Outcome)
	if !ok {
		return nil
	}
	return outcome
}
