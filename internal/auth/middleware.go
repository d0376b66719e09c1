package auth

import (
	"net/http"

	"github.com/frahmantamala/menu-authz/internal"
	"github.com/frahmantamala/menu-authz/internal/transport"
	"github.com/frahmantamala/menu-authz/pkg/logger"
)

type Middleware struct {
	*transport.BaseHandler
	Tokens TokenValidator
}

func NewMiddleware(baseHandler *transport.BaseHandler, tokens TokenValidator) *Middleware {
	return &Middleware{
		BaseHandler: baseHandler,
		Tokens:      tokens,
	}
}

// Authenticate rejects requests without a valid bearer token and stores the
// token's principal on the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.ExtractTokenFromHeader(r)
		if token == "" {
			m.Logger.Warn("auth middleware: missing authorization token", "path", r.URL.Path)
			m.WriteAppError(w, internal.ErrInvalidToken)
			return
		}

		claims, err := m.Tokens.ValidateToken(token)
		if err != nil {
			m.Logger.Warn("auth middleware: token validation failed", "path", r.URL.Path, "error", err)
			m.HandleServiceError(w, err)
			return
		}

		principal := claims.Principal()
		ctx := internal.ContextWithPrincipal(r.Context(), principal)
		ctx = logger.With(ctx, "user_id", principal.UserID, "role", principal.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
