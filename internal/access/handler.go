package access

import (
	"context"
	"net/http"

	"github.com/frahmantamala/menu-authz/internal"
	"github.com/frahmantamala/menu-authz/internal/transport"
)

type ResolverAPI interface {
	Resolve(ctx context.Context, userID int64, role string) ([]*Entry, error)
	ResolveTree(ctx context.Context, userID int64, role string) ([]*Entry, error)
}

type MenusResponse struct {
	UserID int64    `json:"user_id"`
	Role   string   `json:"role"`
	Menus  []*Entry `json:"menus"`
}

type Handler struct {
	*transport.BaseHandler
	Resolver ResolverAPI
}

func NewHandler(baseHandler *transport.BaseHandler, resolver ResolverAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Resolver:    resolver,
	}
}

func (h *Handler) GetMyMenus(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.Resolver.Resolve)
}

func (h *Handler) GetMyMenuTree(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.Resolver.ResolveTree)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, resolve func(context.Context, int64, string) ([]*Entry, error)) {
	principal, ok := internal.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrInvalidToken)
		return
	}

	entries, err := resolve(r.Context(), principal.UserID, principal.Role)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, MenusResponse{
		UserID: principal.UserID,
		Role:   principal.Role,
		Menus:  entries,
	})
}
