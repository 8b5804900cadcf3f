// Package authmw implements a stateless auth-token injector, grounded
// on the teacher's LoggingMiddleware's "touch req.Metadata before
// calling next" shape, minus the logging.
package authmw

import (
	"context"

	"github.com/faberic/fabric"
	"github.com/faberic/fabric/middleware"
)

// TokenSource supplies the credential to attach to each outgoing call.
// Implementations range from a static string closure to one that reads
// a refreshed token from a background-renewed store.
type TokenSource func(ctx context.Context) (string, error)

// MetadataKey is the Metadata field this middleware writes the token
// into.
const MetadataKey = "auth_token"

// New returns a Middleware that stamps Envelope.Metadata[MetadataKey]
// with the token TokenSource returns, ahead of every call to next. A
// TokenSource error short-circuits with a non-retryable validation
// error rather than forwarding an unauthenticated call.
func New(source TokenSource) middleware.Middleware {
	return func(next middleware.Runner) middleware.Runner {
		return func(ctx context.Context, env *fabric.Envelope) (<-chan *fabric.ResponseItem, error) {
			token, err := source(ctx)
			if err != nil {
				ch := make(chan *fabric.ResponseItem, 1)
				ch <- &fabric.ResponseItem{
					ID:     env.ID,
					Status: fabric.Err(fabric.CodeValidationError, "auth: "+err.Error(), false),
				}
				close(ch)
				return ch, nil
			}
			md := env.Metadata.Clone()
			md[MetadataKey] = token
			return next(ctx, env.WithMetadata(md))
		}
	}
}

// Static builds a TokenSource that always returns the same token, for
// tests and single-credential deployments.
func Static(token string) TokenSource {
	return func(ctx context.Context) (string, error) { return token, nil }
}
