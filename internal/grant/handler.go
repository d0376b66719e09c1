package grant

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/menu-authz/internal"
	"github.com/frahmantamala/menu-authz/internal/core/permission"
	"github.com/frahmantamala/menu-authz/internal/transport"
)

type ServiceAPI interface {
	ListActiveFor(ctx context.Context, scope Scope) (map[string]permission.Set, error)
	ReplaceAll(ctx context.Context, scope Scope, assignments []Assignment) error
	History(ctx context.Context, scope Scope) ([]Record, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) GetRoleGrants(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, RoleScope(chi.URLParam(r, "role")))
}

func (h *Handler) ReplaceRoleGrants(w http.ResponseWriter, r *http.Request) {
	h.replace(w, r, RoleScope(chi.URLParam(r, "role")))
}

func (h *Handler) GetRoleGrantHistory(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, RoleScope(chi.URLParam(r, "role")))
}

func (h *Handler) GetUserOverrides(w http.ResponseWriter, r *http.Request) {
	scope, appErr := h.userScope(r)
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}
	h.list(w, r, scope)
}

func (h *Handler) ReplaceUserOverrides(w http.ResponseWriter, r *http.Request) {
	scope, appErr := h.userScope(r)
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}
	h.replace(w, r, scope)
}

func (h *Handler) GetUserOverrideHistory(w http.ResponseWriter, r *http.Request) {
	scope, appErr := h.userScope(r)
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}
	h.history(w, r, scope)
}

func (h *Handler) userScope(r *http.Request) (Scope, *internal.AppError) {
	userID, appErr := h.ParseIDParam(r, "userID")
	if appErr != nil {
		return Scope{}, appErr
	}
	return UserScope(userID), nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, scope Scope) {
	grants, err := h.Service.ListActiveFor(r.Context(), scope)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, GrantsResponse{
		Scope:  string(scope.Kind),
		ID:     scope.ID(),
		Grants: grants,
	})
}

func (h *Handler) replace(w http.ResponseWriter, r *http.Request, scope Scope) {
	var req ReplaceRequest
	if appErr := h.DecodeJSON(r, &req); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}
	if req.Assignments == nil {
		h.WriteAppError(w, internal.NewValidationFieldError("assignments", "assignments is required", internal.ErrCodeValidationFailed))
		return
	}

	if err := h.Service.ReplaceAll(r.Context(), scope, req.Assignments); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("grants replaced via api", "scope", scope.String(), "assignments", len(req.Assignments))
	h.list(w, r, scope)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request, scope Scope) {
	records, err := h.Service.History(r.Context(), scope)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, HistoryResponse{
		Scope:   string(scope.Kind),
		ID:      scope.ID(),
		Records: records,
	})
}
