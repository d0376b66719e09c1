package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeRoleGrantsReplaced    = "access.role_grants.replaced"
	EventTypeUserOverridesReplaced = "access.user_overrides.replaced"
	EventTypeMenuCatalogChanged    = "menu.catalog.changed"
)

type GrantsReplacedEvent struct {
	BaseEvent
	ScopeKind string   `json:"scope_kind"`
	ScopeID   string   `json:"scope_id"`
	MenuKeys  []string `json:"menu_keys"`
}

// NewGrantsReplacedEvent builds the event for a committed bulk replace.
// scopeKind is "role" or "user".
func NewGrantsReplacedEvent(scopeKind, scopeID string, menuKeys []string) *GrantsReplacedEvent {
	eventType := EventTypeRoleGrantsReplaced
	if scopeKind == "user" {
		eventType = EventTypeUserOverridesReplaced
	}
	return &GrantsReplacedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"scope_kind": scopeKind,
				"scope_id":   scopeID,
				"menu_keys":  menuKeys,
			},
		},
		ScopeKind: scopeKind,
		ScopeID:   scopeID,
		MenuKeys:  menuKeys,
	}
}

type MenuCatalogChangedEvent struct {
	BaseEvent
	Action  string `json:"action"`
	MenuID  int64  `json:"menu_id"`
	MenuKey string `json:"menu_key"`
}

func NewMenuCatalogChangedEvent(action string, menuID int64, menuKey string) *MenuCatalogChangedEvent {
	return &MenuCatalogChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeMenuCatalogChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"action":   action,
				"menu_id":  menuID,
				"menu_key": menuKey,
			},
		},
		Action:  action,
		MenuID:  menuID,
		MenuKey: menuKey,
	}
}

// RegisterAuditLogger subscribes a handler that writes every access change to
// logger.
func RegisterAuditLogger(bus *EventBus, logger *slog.Logger) {
	audit := func(ctx context.Context, event Event) error {
		logger.Info("access audit",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"occurred_at", event.OccurredAt(),
			"payload", event.Payload())
		return nil
	}

	bus.Subscribe(EventTypeRoleGrantsReplaced, audit)
	bus.Subscribe(EventTypeUserOverridesReplaced, audit)
	bus.Subscribe(EventTypeMenuCatalogChanged, audit)
}
