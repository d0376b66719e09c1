package rest

import (
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi"

	"github.com/frahmantamala/menu-authz/internal"
	"github.com/frahmantamala/menu-authz/internal/access"
	"github.com/frahmantamala/menu-authz/internal/auth"
	"github.com/frahmantamala/menu-authz/internal/core/permission"
	"github.com/frahmantamala/menu-authz/internal/grant"
	"github.com/frahmantamala/menu-authz/internal/menu"
	"github.com/frahmantamala/menu-authz/internal/transport/middleware"
	"github.com/frahmantamala/menu-authz/internal/transport/swagger"
)

// RouterConfig carries everything RegisterAllRoutes mounts. A nil handler
// leaves its routes out; a nil OpenAPI document disables request validation.
type RouterConfig struct {
	Server  internal.ServerConfig
	Access  internal.AccessConfig
	Logger  *slog.Logger
	OpenAPI *openapi3.T
	Spec    []byte

	Auth    *auth.Middleware
	Checker middleware.AccessChecker

	Health *HealthHandler
	Menu   *menu.Handler
	Grant  *grant.Handler
	Me     *access.Handler
}

func RegisterAllRoutes(router *chi.Mux, cfg RouterConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var validate func(http.Handler) http.Handler
	if cfg.OpenAPI != nil && cfg.Server.ValidateRequests {
		v, err := middleware.ValidateRequests(cfg.OpenAPI, logger)
		if err != nil {
			return err
		}
		validate = v
	}

	// Apply global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.SecureHeaders(logger))
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	if len(cfg.Spec) > 0 {
		spec := cfg.Spec
		router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			w.Write(spec)
		})
		router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))
	}

	router.Route("/api/v1", func(r chi.Router) {
		if cfg.Health != nil {
			r.Get("/health", cfg.Health.Health)
			r.Get("/ping", cfg.Health.Ping)
		}

		if cfg.Auth == nil {
			return
		}

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(cfg.Auth.Authenticate)
			pr.Use(middleware.RateLimit(cfg.Server.RateLimitPerMinute, logger))
			if validate != nil {
				pr.Use(validate)
			}

			if cfg.Me != nil {
				pr.Get("/me/menus", cfg.Me.GetMyMenus)
				pr.Get("/me/menus/tree", cfg.Me.GetMyMenuTree)
			}

			guard := func(menuKey string, action permission.Action) func(http.Handler) http.Handler {
				if cfg.Checker == nil {
					return func(next http.Handler) http.Handler { return next }
				}
				return middleware.RequireMenuAccess(cfg.Checker, menuKey, action, logger)
			}

			if cfg.Menu != nil {
				key := cfg.Access.MenuAdminKey
				pr.Route("/menus", func(mr chi.Router) {
					mr.With(guard(key, permission.ActionRead)).Get("/tree", cfg.Menu.GetTree)
					mr.With(guard(key, permission.ActionRead)).Get("/", cfg.Menu.ListMenus)
					mr.With(guard(key, permission.ActionCreate)).Post("/", cfg.Menu.CreateMenu)
					mr.With(guard(key, permission.ActionRead)).Get("/{id}", cfg.Menu.GetMenu)
					mr.With(guard(key, permission.ActionUpdate)).Patch("/{id}", cfg.Menu.UpdateMenu)
					mr.With(guard(key, permission.ActionUpdate)).Post("/{id}/deactivate", cfg.Menu.DeactivateMenu)
					mr.With(guard(key, permission.ActionUpdate)).Post("/{id}/activate", cfg.Menu.ActivateMenu)
					mr.With(guard(key, permission.ActionDelete)).Delete("/{id}", cfg.Menu.DeleteMenu)
				})
			}

			if cfg.Grant != nil {
				key := cfg.Access.GrantAdminKey
				pr.Route("/roles/{role}/grants", func(gr chi.Router) {
					gr.With(guard(key, permission.ActionRead)).Get("/", cfg.Grant.GetRoleGrants)
					gr.With(guard(key, permission.ActionUpdate)).Put("/", cfg.Grant.ReplaceRoleGrants)
					gr.With(guard(key, permission.ActionRead)).Get("/history", cfg.Grant.GetRoleGrantHistory)
				})
				pr.Route("/users/{userID}/overrides", func(ur chi.Router) {
					ur.With(guard(key, permission.ActionRead)).Get("/", cfg.Grant.GetUserOverrides)
					ur.With(guard(key, permission.ActionUpdate)).Put("/", cfg.Grant.ReplaceUserOverrides)
					ur.With(guard(key, permission.ActionRead)).Get("/history", cfg.Grant.GetUserOverrideHistory)
				})
			}
		})
	})

	return nil
}
