package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/menu-authz/internal"
	grantDatamodel "github.com/frahmantamala/menu-authz/internal/core/datamodel/grant"
	"github.com/frahmantamala/menu-authz/internal/grant"
	"github.com/frahmantamala/menu-authz/internal/platform/database"
)

type GrantRepository struct {
	db *gorm.DB
}

func NewGrantRepository(db *gorm.DB) grant.RepositoryAPI {
	return &GrantRepository{db: db}
}

// target maps a scope onto its table and scope column.
func target(scope grant.Scope) (table, column string, value interface{}, err error) {
	switch scope.Kind {
	case grant.ScopeRole:
		return grantDatamodel.RoleGrant{}.TableName(), "role", scope.Role, nil
	case grant.ScopeUser:
		return grantDatamodel.UserOverride{}.TableName(), "user_id", scope.UserID, nil
	default:
		return "", "", nil, fmt.Errorf("grant/postgres: unknown scope kind %q", scope.Kind)
	}
}

func (r *GrantRepository) ListActive(ctx context.Context, scope grant.Scope) ([]*grantDatamodel.Record, error) {
	table, column, value, err := target(scope)
	if err != nil {
		return nil, err
	}

	var rows []*grantDatamodel.Record
	err = r.db.WithContext(ctx).Table(table).
		Where(column+" = ? AND is_active = ?", value, true).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *GrantRepository) ListHistory(ctx context.Context, scope grant.Scope) ([]*grantDatamodel.Record, error) {
	table, column, value, err := target(scope)
	if err != nil {
		return nil, err
	}

	var rows []*grantDatamodel.Record
	err = r.db.WithContext(ctx).Table(table).
		Where(column+" = ?", value).
		Order("updated_at DESC, id DESC").
		Find(&rows).Error
	return rows, err
}

// ReplaceAll deactivates every active row of the scope, then reactivates or
// inserts one row per assignment in order. The latest row for a key, active
// or not, is reused so its id stays stable across edits.
func (r *GrantRepository) ReplaceAll(ctx context.Context, scope grant.Scope, assignments []grant.Assignment) error {
	table, column, value, err := target(scope)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		err := tx.Table(table).
			Where(column+" = ? AND is_active = ?", value, true).
			Updates(map[string]interface{}{"is_active": false, "updated_at": now}).Error
		if err != nil {
			return fmt.Errorf("deactivate %s: %w", table, err)
		}

		for _, a := range assignments {
			perms := grant.PermissionsToDataModel(a.Permissions)

			var latest grantDatamodel.Record
			res := tx.Table(table).
				Where(column+" = ? AND menu_key = ?", value, a.MenuKey).
				Order("id DESC").
				Limit(1).
				Find(&latest)
			if res.Error != nil {
				return fmt.Errorf("lookup %s %q: %w", table, a.MenuKey, res.Error)
			}

			if res.RowsAffected > 0 {
				err := tx.Table(table).Where("id = ?", latest.ID).Updates(map[string]interface{}{
					"can_create": perms.CanCreate,
					"can_read":   perms.CanRead,
					"can_update": perms.CanUpdate,
					"can_delete": perms.CanDelete,
					"scopes":     perms.Scopes,
					"is_active":  true,
					"updated_at": now,
				}).Error
				if err != nil {
					return fmt.Errorf("reactivate %s %q: %w", table, a.MenuKey, err)
				}
				continue
			}

			if err := tx.Create(newRow(scope, a.MenuKey, perms)).Error; err != nil {
				// a concurrent replace of the same scope inserted the key first
				if database.IsUniqueViolation(err) {
					return internal.NewTransientError(fmt.Sprintf("concurrent insert of %s %q", table, a.MenuKey), err)
				}
				return fmt.Errorf("insert %s %q: %w", table, a.MenuKey, err)
			}
		}
		return nil
	})
}

func newRow(scope grant.Scope, menuKey string, perms grantDatamodel.Permissions) interface{} {
	if scope.Kind == grant.ScopeUser {
		return &grantDatamodel.UserOverride{
			UserID:      scope.UserID,
			MenuKey:     menuKey,
			Permissions: perms,
			IsActive:    true,
		}
	}
	return &grantDatamodel.RoleGrant{
		Role:        scope.Role,
		MenuKey:     menuKey,
		Permissions: perms,
		IsActive:    true,
	}
}
