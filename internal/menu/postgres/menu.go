package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	menuDatamodel "github.com/frahmantamala/menu-authz/internal/core/datamodel/menu"
	"github.com/frahmantamala/menu-authz/internal/menu"
)

type MenuRepository struct {
	db *gorm.DB
}

func NewMenuRepository(db *gorm.DB) menu.RepositoryAPI {
	return &MenuRepository{db: db}
}

func (r *MenuRepository) GetAll(ctx context.Context) ([]*menuDatamodel.MenuNode, error) {
	var rows []*menuDatamodel.MenuNode
	err := r.db.WithContext(ctx).Order("display_order ASC, id ASC").Find(&rows).Error
	return rows, err
}

func (r *MenuRepository) GetByID(ctx context.Context, id int64) (*menuDatamodel.MenuNode, error) {
	var row menuDatamodel.MenuNode
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *MenuRepository) Create(ctx context.Context, node *menuDatamodel.MenuNode, check func(all []*menuDatamodel.MenuNode) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all, err := lockAll(tx)
		if err != nil {
			return err
		}
		if err := check(all); err != nil {
			return err
		}
		return tx.Create(node).Error
	})
}

func (r *MenuRepository) Update(ctx context.Context, id int64, apply func(current *menuDatamodel.MenuNode, all []*menuDatamodel.MenuNode) error) (*menuDatamodel.MenuNode, error) {
	var updated *menuDatamodel.MenuNode
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all, err := lockAll(tx)
		if err != nil {
			return err
		}
		current := find(all, id)
		if current == nil {
			return gorm.ErrRecordNotFound
		}
		if err := apply(current, all); err != nil {
			return err
		}
		if err := tx.Save(current).Error; err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *MenuRepository) Delete(ctx context.Context, id int64, check func(current *menuDatamodel.MenuNode, all []*menuDatamodel.MenuNode) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all, err := lockAll(tx)
		if err != nil {
			return err
		}
		current := find(all, id)
		if current == nil {
			return gorm.ErrRecordNotFound
		}
		if err := check(current, all); err != nil {
			return err
		}
		return tx.Delete(&menuDatamodel.MenuNode{}, id).Error
	})
}

// lockAll reads the whole catalog with FOR UPDATE. sqlite has no row locks and
// its dialect drops the clause.
func lockAll(tx *gorm.DB) ([]*menuDatamodel.MenuNode, error) {
	var rows []*menuDatamodel.MenuNode
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Order("id ASC").Find(&rows).Error
	return rows, err
}

func find(rows []*menuDatamodel.MenuNode, id int64) *menuDatamodel.MenuNode {
	for _, row := range rows {
		if row.ID == id {
			return row
		}
	}
	return nil
}
