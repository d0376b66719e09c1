// Package permission holds the PermissionSet value object shared by the role
// grant store, the user override store and the resolver.
package permission

import (
	"fmt"
	"strings"
)

// Action is one of the four CRUD bits of a Set.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

const maxScopeLength = 128

// Set is always complete: all four booleans are present, a missing one is
// false. Scopes is carried opaquely and never interpreted by the merge.
type Set struct {
	Create bool     `json:"create"`
	Read   bool     `json:"read"`
	Update bool     `json:"update"`
	Delete bool     `json:"delete"`
	Scopes []string `json:"scopes,omitempty"`
}

// AllDeny is substituted when neither an override nor a role grant exists.
var AllDeny = Set{}

// Allows reports whether the set grants action.
func (s Set) Allows(action Action) bool {
	switch action {
	case ActionCreate:
		return s.Create
	case ActionRead:
		return s.Read
	case ActionUpdate:
		return s.Update
	case ActionDelete:
		return s.Delete
	default:
		return false
	}
}

// Equal compares the four bits and the scope list (order sensitive).
func (s Set) Equal(other Set) bool {
	if s.Create != other.Create || s.Read != other.Read || s.Update != other.Update || s.Delete != other.Delete {
		return false
	}
	if len(s.Scopes) != len(other.Scopes) {
		return false
	}
	for i := range s.Scopes {
		if s.Scopes[i] != other.Scopes[i] {
			return false
		}
	}
	return true
}

// Normalize trims scopes and drops duplicates, keeping first-seen order. It
// returns an error for a blank or oversized scope entry.
func (s Set) Normalize() (Set, error) {
	out := Set{Create: s.Create, Read: s.Read, Update: s.Update, Delete: s.Delete, Scopes: []string{}}
	seen := make(map[string]struct{}, len(s.Scopes))
	for i, scope := range s.Scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			return Set{}, fmt.Errorf("scopes[%d] is blank", i)
		}
		if len(scope) > maxScopeLength {
			return Set{}, fmt.Errorf("scopes[%d] exceeds %d characters", i, maxScopeLength)
		}
		if _, dup := seen[scope]; dup {
			continue
		}
		seen[scope] = struct{}{}
		out.Scopes = append(out.Scopes, scope)
	}
	return out, nil
}

// ParseAction maps a lower-case action name to an Action.
func ParseAction(raw string) (Action, bool) {
	switch a := Action(strings.ToLower(strings.TrimSpace(raw))); a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return a, true
	default:
		return "", false
	}
}
