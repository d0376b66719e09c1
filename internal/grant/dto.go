package grant

import "github.com/frahmantamala/menu-authz/internal/core/permission"

type ReplaceRequest struct {
	Assignments []Assignment `json:"assignments" validate:"dive"`
}

type GrantsResponse struct {
	Scope  string                    `json:"scope"`
	ID     string                    `json:"id"`
	Grants map[string]permission.Set `json:"grants"`
}

type HistoryResponse struct {
	Scope   string   `json:"scope"`
	ID      string   `json:"id"`
	Records []Record `json:"records"`
}
