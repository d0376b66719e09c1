// Package seed loads a YAML catalog and role grant document into the stores.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/frahmantamala/menu-authz/internal/core/permission"
	"github.com/frahmantamala/menu-authz/internal/grant"
	"github.com/frahmantamala/menu-authz/internal/menu"
)

//go:embed default.yml
var Default []byte

// Document is the seed file layout.
type Document struct {
	Menus []MenuSpec                         `yaml:"menus"`
	Roles map[string]map[string]Permissions `yaml:"roles"`
}

type MenuSpec struct {
	Key          string     `yaml:"key"`
	Label        string     `yaml:"label"`
	Icon         string     `yaml:"icon"`
	Path         string     `yaml:"path"`
	DisplayOrder *int       `yaml:"display_order"`
	Active       *bool      `yaml:"active"`
	Children     []MenuSpec `yaml:"children"`
}

// Permissions decodes either the letter form ("crud", "r", "none") or the
// mapping form of a permission set.
type Permissions permission.Set

func (p *Permissions) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		set, err := parseLetters(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		*p = Permissions(set)
		return nil
	}

	var raw struct {
		Create bool     `yaml:"create"`
		Read   bool     `yaml:"read"`
		Update bool     `yaml:"update"`
		Delete bool     `yaml:"delete"`
		Scopes []string `yaml:"scopes"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*p = Permissions{Create: raw.Create, Read: raw.Read, Update: raw.Update, Delete: raw.Delete, Scopes: raw.Scopes}
	return nil
}

func parseLetters(s string) (permission.Set, error) {
	var set permission.Set
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "none" || s == "" {
		return set, nil
	}
	for _, c := range s {
		switch c {
		case 'c':
			set.Create = true
		case 'r':
			set.Read = true
		case 'u':
			set.Update = true
		case 'd':
			set.Delete = true
		default:
			return permission.Set{}, fmt.Errorf("unknown permission letter %q in %q", c, s)
		}
	}
	return set, nil
}

// Parse decodes a seed document and rejects duplicate or blank menu keys.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	seen := map[string]bool{}
	var walk func(specs []MenuSpec) error
	walk = func(specs []MenuSpec) error {
		for _, spec := range specs {
			if strings.TrimSpace(spec.Key) == "" {
				return fmt.Errorf("menu %q has no key", spec.Label)
			}
			if seen[spec.Key] {
				return fmt.Errorf("menu key %q appears more than once", spec.Key)
			}
			seen[spec.Key] = true
			if err := walk(spec.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(doc.Menus); err != nil {
		return nil, err
	}
	return &doc, nil
}

type MenuCatalog interface {
	ListAll(ctx context.Context) ([]*menu.Node, error)
	Create(ctx context.Context, dto menu.CreateMenuDTO) (*menu.Node, error)
}

type RoleGrantStore interface {
	ReplaceAll(ctx context.Context, role string, assignments []grant.Assignment) error
}

type Result struct {
	MenusCreated  int      `json:"menus_created"`
	MenusExisting int      `json:"menus_existing"`
	RolesReplaced []string `json:"roles_replaced"`
}

type Seeder struct {
	menus  MenuCatalog
	roles  RoleGrantStore
	logger *slog.Logger
}

func NewSeeder(menus MenuCatalog, roles RoleGrantStore, logger *slog.Logger) *Seeder {
	return &Seeder{menus: menus, roles: roles, logger: logger}
}

// Run creates the menus whose keys are not in the catalog yet, leaving
// existing rows untouched, then replaces the grants of every listed role.
func (s *Seeder) Run(ctx context.Context, doc *Document) (*Result, error) {
	existing, err := s.menus.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	ids := make(map[string]int64, len(existing))
	for _, n := range existing {
		ids[n.Key] = n.ID
	}

	result := &Result{RolesReplaced: []string{}}
	var create func(specs []MenuSpec, parentID *int64) error
	create = func(specs []MenuSpec, parentID *int64) error {
		for i, spec := range specs {
			id, ok := ids[spec.Key]
			if ok {
				result.MenusExisting++
			} else {
				order := i
				if spec.DisplayOrder != nil {
					order = *spec.DisplayOrder
				}
				node, err := s.menus.Create(ctx, menu.CreateMenuDTO{
					Key:          spec.Key,
					Label:        spec.Label,
					Icon:         spec.Icon,
					Path:         spec.Path,
					ParentID:     parentID,
					DisplayOrder: order,
					IsActive:     spec.Active,
				})
				if err != nil {
					return fmt.Errorf("create menu %s: %w", spec.Key, err)
				}
				id = node.ID
				ids[spec.Key] = id
				result.MenusCreated++
				s.logger.Info("seeded menu", "menu_key", spec.Key, "id", id)
			}

			parent := id
			if err := create(spec.Children, &parent); err != nil {
				return err
			}
		}
		return nil
	}
	if err := create(doc.Menus, nil); err != nil {
		return result, err
	}

	roles := make([]string, 0, len(doc.Roles))
	for role := range doc.Roles {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	for _, role := range roles {
		if err := s.roles.ReplaceAll(ctx, role, Assignments(doc.Roles[role])); err != nil {
			return result, fmt.Errorf("replace grants for role %s: %w", role, err)
		}
		result.RolesReplaced = append(result.RolesReplaced, role)
		s.logger.Info("seeded role grants", "role", role, "count", len(doc.Roles[role]))
	}

	return result, nil
}

// Assignments turns a key to permissions mapping into an assignment list
// ordered by menu key.
func Assignments(grants map[string]Permissions) []grant.Assignment {
	keys := make([]string, 0, len(grants))
	for key := range grants {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	assignments := make([]grant.Assignment, 0, len(keys))
	for _, key := range keys {
		assignments = append(assignments, grant.Assignment{
			MenuKey:     key,
			Permissions: permission.Set(grants[key]),
		})
	}
	return assignments
}
