package menu

type CreateMenuDTO struct {
	Key          string `json:"key" validate:"required,menukey"`
	Label        string `json:"label" validate:"required,max=128"`
	Icon         string `json:"icon" validate:"max=64"`
	Path         string `json:"path" validate:"max=255"`
	ParentID     *int64 `json:"parent_id" validate:"omitempty,gt=0"`
	DisplayOrder int    `json:"display_order"`
	IsActive     *bool  `json:"is_active"`
}

// UpdateMenuDTO is a patch: nil fields are left unchanged. ParentID 0 moves
// the node to the top level. The key is immutable once created.
type UpdateMenuDTO struct {
	Label        *string `json:"label" validate:"omitempty,min=1,max=128"`
	Icon         *string `json:"icon" validate:"omitempty,max=64"`
	Path         *string `json:"path" validate:"omitempty,max=255"`
	ParentID     *int64  `json:"parent_id" validate:"omitempty,gte=0"`
	DisplayOrder *int    `json:"display_order"`
	IsActive     *bool   `json:"is_active"`
}

type MenuResponse struct {
	Menu *Node `json:"menu"`
}

type MenusResponse struct {
	Menus []*Node `json:"menus"`
}
