package menu

import "time"

// MenuNode is a row of menu_nodes. Rows are soft-deleted through IsActive;
// ParentID references another row of the same table.
type MenuNode struct {
	ID           int64     `gorm:"primaryKey"`
	Key          string    `gorm:"column:menu_key;uniqueIndex;size:64;not null"`
	Label        string    `gorm:"column:label;not null"`
	Icon         string    `gorm:"column:icon"`
	Path         string    `gorm:"column:path"`
	ParentID     *int64    `gorm:"column:parent_id;index"`
	DisplayOrder int       `gorm:"column:display_order;not null;default:0"`
	IsActive     bool      `gorm:"column:is_active;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (MenuNode) TableName() string {
	return "menu_nodes"
}
