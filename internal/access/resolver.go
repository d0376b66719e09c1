// Package access merges the menu catalog, role grants and user overrides into
// the effective permission view of one user.
package access

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/frahmantamala/menu-authz/internal/core/permission"
	"github.com/frahmantamala/menu-authz/internal/grant"
	"github.com/frahmantamala/menu-authz/internal/menu"
)

type MenuSource interface {
	ListActiveTree(ctx context.Context) ([]*menu.Node, error)
}

type GrantSource interface {
	ListActiveFor(ctx context.Context, scope grant.Scope) (map[string]permission.Set, error)
}

// Entry is a catalog node with the permission set resolved for one user.
type Entry struct {
	ID           int64          `json:"id"`
	Key          string         `json:"key"`
	Label        string         `json:"label"`
	Icon         string         `json:"icon,omitempty"`
	Path         string         `json:"path,omitempty"`
	ParentID     *int64         `json:"parent_id"`
	DisplayOrder int            `json:"display_order"`
	Permissions  permission.Set `json:"permissions"`
	Children     []*Entry       `json:"children,omitempty"`
}

type Resolver struct {
	menus  MenuSource
	grants GrantSource
	logger *slog.Logger
}

func NewResolver(menus MenuSource, grants GrantSource, logger *slog.Logger) *Resolver {
	return &Resolver{
		menus:  menus,
		grants: grants,
		logger: logger,
	}
}

// Effective applies the precedence rule for one key: an override replaces the
// role grant entirely, and with neither present the result is AllDeny.
func Effective(key string, overrides, roleGrants map[string]permission.Set) permission.Set {
	if set, ok := overrides[key]; ok {
		return set
	}
	if set, ok := roleGrants[key]; ok {
		return set
	}
	return permission.AllDeny
}

// Resolve returns the readable active menus for the user in catalog order.
// A role or user id that cannot own rows contributes no grants.
func (r *Resolver) Resolve(ctx context.Context, userID int64, role string) ([]*Entry, error) {
	var (
		tree       []*menu.Node
		roleGrants map[string]permission.Set
		overrides  map[string]permission.Set
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tree, err = r.menus.ListActiveTree(gctx)
		return err
	})
	if roleScope := grant.RoleScope(role); roleScope.Validate() == nil {
		g.Go(func() error {
			var err error
			roleGrants, err = r.grants.ListActiveFor(gctx, roleScope)
			return err
		})
	}
	if userScope := grant.UserScope(userID); userScope.Validate() == nil {
		g.Go(func() error {
			var err error
			overrides, err = r.grants.ListActiveFor(gctx, userScope)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Error("failed to resolve effective menus", "user_id", userID, "role", role, "error", err)
		return nil, err
	}

	entries := make([]*Entry, 0)
	for _, node := range menu.Flatten(tree) {
		effective := Effective(node.Key, overrides, roleGrants)
		if !effective.Read {
			continue
		}
		entries = append(entries, &Entry{
			ID:           node.ID,
			Key:          node.Key,
			Label:        node.Label,
			Icon:         node.Icon,
			Path:         node.Path,
			ParentID:     node.ParentID,
			DisplayOrder: node.DisplayOrder,
			Permissions:  effective,
		})
	}

	r.logger.Debug("resolved effective menus", "user_id", userID, "role", role, "count", len(entries))
	return entries, nil
}

// ResolveTree nests the result of Resolve by parent. An entry whose parent is
// not readable is promoted to the top level.
func (r *Resolver) ResolveTree(ctx context.Context, userID int64, role string) ([]*Entry, error) {
	entries, err := r.Resolve(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	return Nest(entries), nil
}

// Check reports whether the user may perform action on menuKey. Menus that are
// inactive or not readable allow nothing.
func (r *Resolver) Check(ctx context.Context, userID int64, role, menuKey string, action permission.Action) (bool, error) {
	entries, err := r.Resolve(ctx, userID, role)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Key == menuKey {
			return e.Permissions.Allows(action), nil
		}
	}
	return false, nil
}

// Nest groups entries, which must be in pre-order, under their parents.
func Nest(entries []*Entry) []*Entry {
	byID := make(map[int64]*Entry, len(entries))
	roots := make([]*Entry, 0)
	for _, e := range entries {
		node := *e
		node.Children = nil
		byID[node.ID] = &node

		if node.ParentID != nil {
			if parent, ok := byID[*node.ParentID]; ok {
				parent.Children = append(parent.Children, &node)
				continue
			}
		}
		roots = append(roots, &node)
	}
	return roots
}
