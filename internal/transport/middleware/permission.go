package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/menu-authz/internal"
	"github.com/frahmantamala/menu-authz/internal/core/permission"
	"github.com/frahmantamala/menu-authz/internal/transport"
)

// AccessChecker answers whether a user may perform an action on a menu.
type AccessChecker interface {
	Check(ctx context.Context, userID int64, role, menuKey string, action permission.Action) (bool, error)
}

// RequireMenuAccess creates a middleware that lets the request through only
// when the principal's effective permissions on menuKey allow action.
func RequireMenuAccess(checker AccessChecker, menuKey string, action permission.Action, logger *slog.Logger) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := internal.PrincipalFromContext(r.Context())
			if !ok {
				base.WriteAppError(w, internal.ErrInvalidToken)
				return
			}

			allowed, err := checker.Check(r.Context(), principal.UserID, principal.Role, menuKey, action)
			if err != nil {
				base.HandleServiceError(w, err)
				return
			}

			if !allowed {
				base.Logger.Warn("access denied: menu permission missing",
					"user_id", principal.UserID,
					"role", principal.Role,
					"menu_key", menuKey,
					"action", action)
				base.WriteAppError(w, internal.ErrInsufficientAccess.WithDetails(map[string]string{
					"menu_key": menuKey,
					"action":   string(action),
				}))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
