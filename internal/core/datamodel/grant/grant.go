package grant

import (
	"time"

	"gorm.io/datatypes"
)

// Permissions are the columns shared by role_grants and user_overrides.
type Permissions struct {
	CanCreate bool                        `gorm:"column:can_create;not null;default:false"`
	CanRead   bool                        `gorm:"column:can_read;not null;default:false"`
	CanUpdate bool                        `gorm:"column:can_update;not null;default:false"`
	CanDelete bool                        `gorm:"column:can_delete;not null;default:false"`
	Scopes    datatypes.JSONSlice[string] `gorm:"column:scopes"`
}

// RoleGrant is a row of role_grants. At most one active row exists per
// (role, menu_key); inactive rows are history.
type RoleGrant struct {
	ID          int64       `gorm:"primaryKey"`
	Role        string      `gorm:"column:role;size:64;not null;uniqueIndex:idx_role_grants_active,where:is_active = true"`
	MenuKey     string      `gorm:"column:menu_key;size:64;not null;uniqueIndex:idx_role_grants_active,where:is_active = true"`
	Permissions Permissions `gorm:"embedded"`
	IsActive    bool        `gorm:"column:is_active;not null;index"`
	CreatedAt   time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (RoleGrant) TableName() string {
	return "role_grants"
}

// UserOverride is a row of user_overrides, same discipline as RoleGrant but
// scoped to a user.
type UserOverride struct {
	ID          int64       `gorm:"primaryKey"`
	UserID      int64       `gorm:"column:user_id;not null;uniqueIndex:idx_user_overrides_active,where:is_active = true"`
	MenuKey     string      `gorm:"column:menu_key;size:64;not null;uniqueIndex:idx_user_overrides_active,where:is_active = true"`
	Permissions Permissions `gorm:"embedded"`
	IsActive    bool        `gorm:"column:is_active;not null;index"`
	CreatedAt   time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserOverride) TableName() string {
	return "user_overrides"
}

// Record is the scope-independent projection of either table, used by the
// replace protocol and history queries.
type Record struct {
	ID          int64       `gorm:"column:id"`
	MenuKey     string      `gorm:"column:menu_key"`
	Permissions Permissions `gorm:"embedded"`
	IsActive    bool        `gorm:"column:is_active"`
	CreatedAt   time.Time   `gorm:"column:created_at"`
	UpdatedAt   time.Time   `gorm:"column:updated_at"`
}
