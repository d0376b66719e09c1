package menu

import (
	"context"
	"net/http"

	"github.com/frahmantamala/menu-authz/internal/transport"
)

type ServiceAPI interface {
	ListActiveTree(ctx context.Context) ([]*Node, error)
	ListAll(ctx context.Context) ([]*Node, error)
	Get(ctx context.Context, id int64) (*Node, error)
	Create(ctx context.Context, dto CreateMenuDTO) (*Node, error)
	Update(ctx context.Context, id int64, dto UpdateMenuDTO) (*Node, error)
	Deactivate(ctx context.Context, id int64) (*Node, error)
	Activate(ctx context.Context, id int64) (*Node, error)
	Delete(ctx context.Context, id int64) error
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

func (h *Handler) GetTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.Service.ListActiveTree(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, MenusResponse{Menus: nonNil(tree)})
}

func (h *Handler) ListMenus(w http.ResponseWriter, r *http.Request) {
	menus, err := h.Service.ListAll(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, MenusResponse{Menus: nonNil(menus)})
}

func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.ParseIDParam(r, "id")
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	node, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, MenuResponse{Menu: node})
}

func (h *Handler) CreateMenu(w http.ResponseWriter, r *http.Request) {
	var dto CreateMenuDTO
	if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	node, err := h.Service.Create(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, MenuResponse{Menu: node})
}

func (h *Handler) UpdateMenu(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.ParseIDParam(r, "id")
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	var dto UpdateMenuDTO
	if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	node, err := h.Service.Update(r.Context(), id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, MenuResponse{Menu: node})
}

func (h *Handler) DeactivateMenu(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.Service.Deactivate)
}

func (h *Handler) ActivateMenu(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.Service.Activate)
}

func (h *Handler) DeleteMenu(w http.ResponseWriter, r *http.Request) {
	id, appErr := h.ParseIDParam(r, "id")
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	if err := h.Service.Delete(r.Context(), id); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) (*Node, error)) {
	id, appErr := h.ParseIDParam(r, "id")
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	node, err := fn(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, MenuResponse{Menu: node})
}

func nonNil(nodes []*Node) []*Node {
	if nodes == nil {
		return []*Node{}
	}
	return nodes
}
