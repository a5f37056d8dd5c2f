package authcore

import "context"

type clientContextKey struct{}
type sessionContextKey struct{}

// WithClientContext attaches the caller's IP and user agent to ctx, for
// handlers that call [Engine.Authenticate] further down the chain.
func WithClientContext(ctx context.Context, client ClientContext) context.Context {
	return context.WithValue(ctx, clientContextKey{}, client)
}

// ClientContextFrom returns the client attached by [WithClientContext], or
// the zero value.
func ClientContextFrom(ctx context.Context) ClientContext {
	if ctx == nil {
		return ClientContext{}
	}
	client, _ := ctx.Value(clientContextKey{}).(ClientContext)
	return client
}

// WithSession attaches a validated session to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionFromContext returns the session attached by [WithSession].
func SessionFromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(sessionContextKey{}).(*Session)
	return s, ok && s != nil
}
