package database

import (
	"fmt"

	"gorm.io/gorm"

	grantDatamodel "github.com/frahmantamala/menu-authz/internal/core/datamodel/grant"
	menuDatamodel "github.com/frahmantamala/menu-authz/internal/core/datamodel/menu"
)

// AutoMigrate creates the access tables from the gorm models. It backs the
// sqlite driver, which cannot run the Postgres migrations under db/migrations.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&menuDatamodel.MenuNode{}, &grantDatamodel.RoleGrant{}, &grantDatamodel.UserOverride{}); err != nil {
		return fmt.Errorf("platform/database: auto migrate: %w", err)
	}
	return nil
}
