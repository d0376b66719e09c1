package menu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/frahmantamala/menu-authz/internal"
	"github.com/frahmantamala/menu-authz/internal/core/common/validation"
	menuDatamodel "github.com/frahmantamala/menu-authz/internal/core/datamodel/menu"
	"github.com/frahmantamala/menu-authz/internal/core/events"
	"github.com/frahmantamala/menu-authz/internal/platform/database"
)

// RepositoryAPI stores the catalog as a flat table. The mutating methods run
// inside one transaction that holds every catalog row locked, so callbacks see
// a consistent snapshot and concurrent re-parentings cannot jointly form a
// cycle. Unknown ids surface as gorm.ErrRecordNotFound.
type RepositoryAPI interface {
	GetAll(ctx context.Context) ([]*menuDatamodel.MenuNode, error)
	GetByID(ctx context.Context, id int64) (*menuDatamodel.MenuNode, error)
	Create(ctx context.Context, node *menuDatamodel.MenuNode, check func(all []*menuDatamodel.MenuNode) error) error
	Update(ctx context.Context, id int64, apply func(current *menuDatamodel.MenuNode, all []*menuDatamodel.MenuNode) error) (*menuDatamodel.MenuNode, error)
	Delete(ctx context.Context, id int64, check func(current *menuDatamodel.MenuNode, all []*menuDatamodel.MenuNode) error) error
}

const (
	actionCreated     = "created"
	actionUpdated     = "updated"
	actionDeactivated = "deactivated"
	actionActivated   = "activated"
	actionDeleted     = "deleted"
)

type Service struct {
	repo      RepositoryAPI
	publisher events.Publisher
	logger    *slog.Logger
}

// NewService builds the catalog service. publisher may be nil.
func NewService(repo RepositoryAPI, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// ListActiveTree returns the active catalog nested by parent.
func (s *Service) ListActiveTree(ctx context.Context) ([]*Node, error) {
	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.Error("failed to load menu catalog", "error", err)
		return nil, database.ClassifyError(err, "failed to load menu catalog")
	}
	return BuildActiveTree(rows), nil
}

// ListAll returns every row, inactive ones included, ordered by display order
// then id.
func (s *Service) ListAll(ctx context.Context) ([]*Node, error) {
	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.Error("failed to load menu catalog", "error", err)
		return nil, database.ClassifyError(err, "failed to load menu catalog")
	}

	SortRows(rows)
	nodes := make([]*Node, 0, len(rows))
	for _, row := range rows {
		nodes = append(nodes, FromDataModel(row))
	}
	return nodes, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Node, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get menu", "menu_id", id, "error", err)
		return nil, database.ClassifyError(err, "failed to get menu")
	}
	if row == nil {
		return nil, menuNotFound(id)
	}
	return FromDataModel(row), nil
}

func (s *Service) Create(ctx context.Context, dto CreateMenuDTO) (*Node, error) {
	if appErr := validation.Struct(dto); appErr != nil {
		return nil, appErr
	}

	isActive := true
	if dto.IsActive != nil {
		isActive = *dto.IsActive
	}

	row := &menuDatamodel.MenuNode{
		Key:          dto.Key,
		Label:        dto.Label,
		Icon:         dto.Icon,
		Path:         dto.Path,
		ParentID:     dto.ParentID,
		DisplayOrder: dto.DisplayOrder,
		IsActive:     isActive,
	}

	err := s.repo.Create(ctx, row, func(all []*menuDatamodel.MenuNode) error {
		for _, existing := range all {
			if existing.Key == row.Key {
				return duplicateKey(row.Key)
			}
		}
		if row.ParentID != nil && createsCycle(0, *row.ParentID, indexByID(all)) {
			return cycle(row.Key, *row.ParentID)
		}
		return nil
	})
	if err != nil {
		return nil, s.translate(err, "create menu", "menu_key", dto.Key)
	}

	s.logger.Info("menu created", "menu_id", row.ID, "menu_key", row.Key)
	s.publish(ctx, actionCreated, row)
	return FromDataModel(row), nil
}

func (s *Service) Update(ctx context.Context, id int64, dto UpdateMenuDTO) (*Node, error) {
	if appErr := validation.Struct(dto); appErr != nil {
		return nil, appErr
	}
	return s.update(ctx, id, dto, actionUpdated)
}

// Deactivate hides a node and its subtree from every resolution. The row and
// any grants referencing its key are kept.
func (s *Service) Deactivate(ctx context.Context, id int64) (*Node, error) {
	inactive := false
	return s.update(ctx, id, UpdateMenuDTO{IsActive: &inactive}, actionDeactivated)
}

func (s *Service) Activate(ctx context.Context, id int64) (*Node, error) {
	active := true
	return s.update(ctx, id, UpdateMenuDTO{IsActive: &active}, actionActivated)
}

// Delete removes a row permanently. Nodes that still have children are
// rejected so the catalog never references a missing parent.
func (s *Service) Delete(ctx context.Context, id int64) error {
	var key string
	err := s.repo.Delete(ctx, id, func(current *menuDatamodel.MenuNode, all []*menuDatamodel.MenuNode) error {
		key = current.Key
		for _, row := range all {
			if row.ParentID != nil && *row.ParentID == id {
				return internal.NewValidationError(
					fmt.Sprintf("menu %q still has child entries", current.Key),
					internal.ErrCodeMenuHasChildren,
				).WithDetails(map[string]interface{}{"id": id, "key": current.Key})
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return menuNotFound(id)
		}
		return s.translate(err, "delete menu", "menu_id", id)
	}

	s.logger.Info("menu deleted", "menu_id", id, "menu_key", key)
	s.publish(ctx, actionDeleted, &menuDatamodel.MenuNode{ID: id, Key: key})
	return nil
}

func (s *Service) update(ctx context.Context, id int64, dto UpdateMenuDTO, action string) (*Node, error) {
	row, err := s.repo.Update(ctx, id, func(current *menuDatamodel.MenuNode, all []*menuDatamodel.MenuNode) error {
		if dto.ParentID != nil {
			if *dto.ParentID == 0 {
				current.ParentID = nil
			} else {
				parentID := *dto.ParentID
				if createsCycle(current.ID, parentID, indexByID(all)) {
					return cycle(current.Key, parentID)
				}
				current.ParentID = &parentID
			}
		}
		if dto.Label != nil {
			current.Label = *dto.Label
		}
		if dto.Icon != nil {
			current.Icon = *dto.Icon
		}
		if dto.Path != nil {
			current.Path = *dto.Path
		}
		if dto.DisplayOrder != nil {
			current.DisplayOrder = *dto.DisplayOrder
		}
		if dto.IsActive != nil {
			current.IsActive = *dto.IsActive
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, menuNotFound(id)
		}
		return nil, s.translate(err, action+" menu", "menu_id", id)
	}

	s.logger.Info("menu "+action, "menu_id", row.ID, "menu_key", row.Key)
	s.publish(ctx, action, row)
	return FromDataModel(row), nil
}

func (s *Service) translate(err error, op string, kv ...any) error {
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	if database.IsUniqueViolation(err) {
		return internal.NewValidationError("menu key already exists", internal.ErrCodeDuplicateMenuKey).WithCause(err)
	}
	s.logger.Error("failed to "+op, append(kv, "error", err)...)
	return database.ClassifyError(err, "failed to "+op)
}

func (s *Service) publish(ctx context.Context, action string, row *menuDatamodel.MenuNode) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewMenuCatalogChangedEvent(action, row.ID, row.Key)); err != nil {
		s.logger.Warn("failed to publish catalog event", "menu_id", row.ID, "error", err)
	}
}

func menuNotFound(id int64) *internal.AppError {
	return internal.NewNotFoundError(fmt.Sprintf("menu %d not found", id), internal.ErrCodeMenuNotFound).
		WithDetails(map[string]interface{}{"id": id})
}

func duplicateKey(key string) *internal.AppError {
	return internal.NewValidationError(fmt.Sprintf("menu key %q already exists", key), internal.ErrCodeDuplicateMenuKey).
		WithDetails(map[string]interface{}{"key": key})
}

func cycle(key string, parentID int64) *internal.AppError {
	return internal.NewCycleError(
		fmt.Sprintf("parent %d for menu %q does not exist or would create a cycle", parentID, key),
		internal.ErrCodeMenuCycle,
	).WithDetails(map[string]interface{}{"key": key, "parent_id": parentID})
}
