// Package auth carries caller identity through context.Context.
//
// A Principal identifies who submitted a job. Workers restore the
// submitting principal into the execution context so downstream calls
// (document updates, webhooks) see the same identity as the original
// request.
package auth

import "context"

type ctxKey struct{}

// Principal identifies the caller of a pipeline operation.
type Principal struct {
	// UserID is the stable identifier of the caller.
	UserID string
	// UserName is the display name recorded on audit trails.
	UserName string
	// Elevated marks callers allowed to override the extraction model.
	Elevated bool
}

// WithPrincipal attaches a principal to the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFrom extracts the principal from the context.
// Returns false if no principal is present.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// Capture extracts the caller identity from the context.
// Returns empty strings if no principal is present.
func Capture(ctx context.Context) (userID, userName string) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return "", ""
	}
	return p.UserID, p.UserName
}

// Restore attaches a principal built from the given identity fields.
// If both are empty, the context is returned unchanged (no-op).
func Restore(ctx context.Context, userID, userName string) context.Context {
	if userID == "" && userName == "" {
		return ctx
	}
	return WithPrincipal(ctx, Principal{UserID: userID, UserName: userName})
}
