package tools

import "context"

// Invocation identifies the conversation a tool call belongs to. It rides on
// the context so concurrent sessions never share mutable tool state.
type Invocation struct {
	SessionKey string
	Channel    string
	ChatID     string
}

type invocationKey struct{}

// WithInvocation attaches the conversation identity to ctx.
func WithInvocation(ctx context.Context, inv Invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

// InvocationFrom returns the conversation identity, zero when absent.
func InvocationFrom(ctx context.Context) Invocation {
	inv, _ := ctx.Value(invocationKey{}).(Invocation)
	return inv
}
