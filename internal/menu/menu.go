package menu

import (
	"sort"
	"time"

	menuDatamodel "github.com/frahmantamala/menu-authz/internal/core/datamodel/menu"
)

type Node struct {
	ID           int64     `json:"id"`
	Key          string    `json:"key"`
	Label        string    `json:"label"`
	Icon         string    `json:"icon,omitempty"`
	Path         string    `json:"path,omitempty"`
	ParentID     *int64    `json:"parent_id"`
	DisplayOrder int       `json:"display_order"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Children     []*Node   `json:"children,omitempty"`
}

func (n *Node) IsTopLevel() bool {
	return n.ParentID == nil
}

func ToDataModel(n *Node) *menuDatamodel.MenuNode {
	return &menuDatamodel.MenuNode{
		ID:           n.ID,
		Key:          n.Key,
		Label:        n.Label,
		Icon:         n.Icon,
		Path:         n.Path,
		ParentID:     n.ParentID,
		DisplayOrder: n.DisplayOrder,
		IsActive:     n.IsActive,
		CreatedAt:    n.CreatedAt,
		UpdatedAt:    n.UpdatedAt,
	}
}

func FromDataModel(m *menuDatamodel.MenuNode) *Node {
	return &Node{
		ID:           m.ID,
		Key:          m.Key,
		Label:        m.Label,
		Icon:         m.Icon,
		Path:         m.Path,
		ParentID:     m.ParentID,
		DisplayOrder: m.DisplayOrder,
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// SortRows orders rows by display order, ties broken by id.
func SortRows(rows []*menuDatamodel.MenuNode) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].DisplayOrder != rows[j].DisplayOrder {
			return rows[i].DisplayOrder < rows[j].DisplayOrder
		}
		return rows[i].ID < rows[j].ID
	})
}

// BuildActiveTree groups the flat catalog by parent id. Only nodes whose whole
// ancestor chain is active are kept, and siblings are ordered by display
// order then id at every level. Rows referencing a missing parent are
// unreachable and dropped.
func BuildActiveTree(rows []*menuDatamodel.MenuNode) []*Node {
	sorted := make([]*menuDatamodel.MenuNode, len(rows))
	copy(sorted, rows)
	SortRows(sorted)

	children := make(map[int64][]*menuDatamodel.MenuNode)
	var roots []*menuDatamodel.MenuNode
	for _, row := range sorted {
		if !row.IsActive {
			continue
		}
		if row.ParentID == nil {
			roots = append(roots, row)
			continue
		}
		children[*row.ParentID] = append(children[*row.ParentID], row)
	}

	visited := make(map[int64]bool, len(sorted))
	var build func(row *menuDatamodel.MenuNode) *Node
	build = func(row *menuDatamodel.MenuNode) *Node {
		visited[row.ID] = true
		node := FromDataModel(row)
		for _, child := range children[row.ID] {
			if visited[child.ID] {
				continue
			}
			node.Children = append(node.Children, build(child))
		}
		return node
	}

	tree := make([]*Node, 0, len(roots))
	for _, root := range roots {
		tree = append(tree, build(root))
	}
	return tree
}

// Flatten lists a tree in pre-order: parent before children, siblings in
// their stored order. The returned nodes carry no children.
func Flatten(tree []*Node) []*Node {
	var out []*Node
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			flat := *n
			flat.Children = nil
			out = append(out, &flat)
			walk(n.Children)
		}
	}
	walk(tree)
	return out
}

// createsCycle reports whether giving node id the parent parentID would make
// id its own ancestor. A chain that reaches a missing row, or loops without
// passing through id, is also rejected.
func createsCycle(id, parentID int64, byID map[int64]*menuDatamodel.MenuNode) bool {
	seen := make(map[int64]bool)
	current := parentID
	for {
		if current == id {
			return true
		}
		if seen[current] {
			return true
		}
		seen[current] = true

		row, ok := byID[current]
		if !ok {
			return true
		}
		if row.ParentID == nil {
			return false
		}
		current = *row.ParentID
	}
}

func indexByID(rows []*menuDatamodel.MenuNode) map[int64]*menuDatamodel.MenuNode {
	byID := make(map[int64]*menuDatamodel.MenuNode, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	return byID
}
