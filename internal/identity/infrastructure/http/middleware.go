package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmehra2102/qr-order-flow/internal/identity/domain"
)

type ctxKey struct{}

type Resolver interface {
	CurrentActor(ctx context.Context, token string) (domain.Actor, error)
}

// Authenticate resolves the bearer token, when present, and stores the actor on
// the request context. It never rejects; handlers decide what they require.
func Authenticate(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			actor, err := resolver.CurrentActor(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, actor)
}

// ActorFrom returns the request's actor, or the unauthenticated zero value.
func ActorFrom(ctx context.Context) domain.Actor {
	actor, _ := ctx.Value(ctxKey{}).(domain.Actor)
	return actor
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	// EventSource cannot set headers.
	return r.URL.Query().Get("access_token")
}
