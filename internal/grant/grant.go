// Package grant owns the role grant and user override stores. Both tables are
// written only through ReplaceAll.
package grant

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/menu-authz/internal"
	grantDatamodel "github.com/frahmantamala/menu-authz/internal/core/datamodel/grant"
	"github.com/frahmantamala/menu-authz/internal/core/permission"
)

type ScopeKind string

const (
	ScopeRole ScopeKind = "role"
	ScopeUser ScopeKind = "user"
)

const maxRoleLength = 64

// Scope addresses one role's grants or one user's overrides.
type Scope struct {
	Kind   ScopeKind
	Role   string
	UserID int64
}

func RoleScope(role string) Scope {
	return Scope{Kind: ScopeRole, Role: role}
}

func UserScope(userID int64) Scope {
	return Scope{Kind: ScopeUser, UserID: userID}
}

// ID is the scope value as text: the role name or the decimal user id.
func (s Scope) ID() string {
	if s.Kind == ScopeUser {
		return strconv.FormatInt(s.UserID, 10)
	}
	return s.Role
}

func (s Scope) String() string {
	return string(s.Kind) + ":" + s.ID()
}

func (s Scope) Validate() *internal.AppError {
	switch s.Kind {
	case ScopeRole:
		if strings.TrimSpace(s.Role) == "" {
			return internal.NewValidationFieldError("role", "role is required", internal.ErrCodeInvalidScope)
		}
		if len(s.Role) > maxRoleLength {
			return internal.NewValidationFieldError("role", fmt.Sprintf("role must not exceed %d characters", maxRoleLength), internal.ErrCodeInvalidScope)
		}
	case ScopeUser:
		if s.UserID <= 0 {
			return internal.NewValidationFieldError("user_id", "user_id must be a positive integer", internal.ErrCodeInvalidScope)
		}
	default:
		return internal.NewValidationError(fmt.Sprintf("unknown scope kind %q", s.Kind), internal.ErrCodeInvalidScope)
	}
	return nil
}

// Assignment is one row of a bulk replace: the full permission set for a menu key.
type Assignment struct {
	MenuKey     string         `json:"menu_key" validate:"required,menukey"`
	Permissions permission.Set `json:"permissions"`
}

// Record is a stored grant row, active or historical.
type Record struct {
	ID          int64          `json:"id"`
	MenuKey     string         `json:"menu_key"`
	Permissions permission.Set `json:"permissions"`
	IsActive    bool           `json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func PermissionsToDataModel(set permission.Set) grantDatamodel.Permissions {
	scopes := set.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	return grantDatamodel.Permissions{
		CanCreate: set.Create,
		CanRead:   set.Read,
		CanUpdate: set.Update,
		CanDelete: set.Delete,
		Scopes:    scopes,
	}
}

func PermissionsFromDataModel(p grantDatamodel.Permissions) permission.Set {
	var scopes []string
	if len(p.Scopes) > 0 {
		scopes = append(scopes, p.Scopes...)
	}
	return permission.Set{
		Create: p.CanCreate,
		Read:   p.CanRead,
		Update: p.CanUpdate,
		Delete: p.CanDelete,
		Scopes: scopes,
	}
}

func FromDataModel(r *grantDatamodel.Record) Record {
	return Record{
		ID:          r.ID,
		MenuKey:     r.MenuKey,
		Permissions: PermissionsFromDataModel(r.Permissions),
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
