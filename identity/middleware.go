package identity

import (
	"net/http"

	"go.uber.org/zap"
)

// ErrorWriter renders a resolution failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware resolves the caller and stores the actor in the request
// context. Requests that do not resolve never reach next.
func Middleware(res *Resolver, onError ErrorWriter, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := res.Resolve(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				logger.Debug("identity rejected",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}
