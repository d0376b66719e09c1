package grant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/frahmantamala/menu-authz/internal"
	"github.com/frahmantamala/menu-authz/internal/core/common/validation"
	grantDatamodel "github.com/frahmantamala/menu-authz/internal/core/datamodel/grant"
	"github.com/frahmantamala/menu-authz/internal/core/events"
	"github.com/frahmantamala/menu-authz/internal/core/permission"
	"github.com/frahmantamala/menu-authz/internal/platform/database"
)

// RepositoryAPI is implemented once for both tables; the scope picks the table.
// ReplaceAll must run the whole protocol in a single transaction.
type RepositoryAPI interface {
	ListActive(ctx context.Context, scope Scope) ([]*grantDatamodel.Record, error)
	ListHistory(ctx context.Context, scope Scope) ([]*grantDatamodel.Record, error)
	ReplaceAll(ctx context.Context, scope Scope, assignments []Assignment) error
}

type Service struct {
	repo         RepositoryAPI
	publisher    events.Publisher
	logger       *slog.Logger
	timeout      time.Duration
	maxRetries   uint64
	retryBackoff time.Duration
}

// NewService builds the grant stores. publisher may be nil.
func NewService(repo RepositoryAPI, publisher events.Publisher, cfg internal.AccessConfig, logger *slog.Logger) *Service {
	backoff := cfg.ReplaceRetryBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	return &Service{
		repo:         repo,
		publisher:    publisher,
		logger:       logger,
		timeout:      cfg.ReplaceTimeout,
		maxRetries:   cfg.ReplaceMaxRetries,
		retryBackoff: backoff,
	}
}

// ListActiveFor returns the active permission set per menu key for scope.
func (s *Service) ListActiveFor(ctx context.Context, scope Scope) (map[string]permission.Set, error) {
	if appErr := scope.Validate(); appErr != nil {
		return nil, appErr
	}

	rows, err := s.repo.ListActive(ctx, scope)
	if err != nil {
		s.logger.Error("failed to list active grants", "scope", scope.String(), "error", err)
		return nil, database.ClassifyError(err, "failed to list grants")
	}

	grants := make(map[string]permission.Set, len(rows))
	for _, row := range rows {
		grants[row.MenuKey] = PermissionsFromDataModel(row.Permissions)
	}
	return grants, nil
}

// History lists every row for scope, newest first.
func (s *Service) History(ctx context.Context, scope Scope) ([]Record, error) {
	if appErr := scope.Validate(); appErr != nil {
		return nil, appErr
	}

	rows, err := s.repo.ListHistory(ctx, scope)
	if err != nil {
		s.logger.Error("failed to list grant history", "scope", scope.String(), "error", err)
		return nil, database.ClassifyError(err, "failed to list grant history")
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, FromDataModel(row))
	}
	return records, nil
}

// ReplaceAll sets the complete assignment list for scope. Keys missing from
// assignments lose their grant. The whole input is validated before anything
// is written; a transient store failure retries the full transaction.
func (s *Service) ReplaceAll(ctx context.Context, scope Scope, assignments []Assignment) error {
	if appErr := scope.Validate(); appErr != nil {
		return appErr
	}

	normalized, appErr := normalizeAssignments(assignments)
	if appErr != nil {
		return appErr
	}

	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.retryBackoff))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		attemptCtx, cancel := internal.WithTimeout(ctx, s.timeout)
		defer cancel()

		if err := s.repo.ReplaceAll(attemptCtx, scope, normalized); err != nil {
			if database.IsTransient(err) {
				s.logger.Warn("replace hit a transient store error, retrying",
					"scope", scope.String(), "attempt", attempt, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to replace grants", "scope", scope.String(), "attempts", attempt, "error", err)
		return database.ClassifyError(err, "failed to replace grants")
	}

	keys := make([]string, 0, len(normalized))
	for _, a := range normalized {
		keys = append(keys, a.MenuKey)
	}
	s.logger.Info("grants replaced", "scope", scope.String(), "assignments", len(normalized))

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.NewGrantsReplacedEvent(string(scope.Kind), scope.ID(), keys)); err != nil {
			s.logger.Warn("failed to publish grants replaced event", "scope", scope.String(), "error", err)
		}
	}
	return nil
}

func normalizeAssignments(assignments []Assignment) ([]Assignment, *internal.AppError) {
	if appErr := validation.Struct(ReplaceRequest{Assignments: assignments}); appErr != nil {
		return nil, appErr
	}

	normalized := make([]Assignment, 0, len(assignments))
	for i, a := range assignments {
		set, err := a.Permissions.Normalize()
		if err != nil {
			return nil, internal.NewValidationFieldError(
				fmt.Sprintf("assignments[%d].permissions", i),
				fmt.Sprintf("menu %q: %v", a.MenuKey, err),
				internal.ErrCodeInvalidPermissionSet,
			)
		}
		normalized = append(normalized, Assignment{MenuKey: a.MenuKey, Permissions: set})
	}
	return normalized, nil
}

// Roles is the role grant store view.
func (s *Service) Roles() *RoleGrants {
	return &RoleGrants{service: s}
}

// Users is the user override store view.
func (s *Service) Users() *UserOverrides {
	return &UserOverrides{service: s}
}

type RoleGrants struct {
	service *Service
}

func (r *RoleGrants) ListActiveFor(ctx context.Context, role string) (map[string]permission.Set, error) {
	return r.service.ListActiveFor(ctx, RoleScope(role))
}

func (r *RoleGrants) ReplaceAll(ctx context.Context, role string, assignments []Assignment) error {
	return r.service.ReplaceAll(ctx, RoleScope(role), assignments)
}

func (r *RoleGrants) History(ctx context.Context, role string) ([]Record, error) {
	return r.service.History(ctx, RoleScope(role))
}

type UserOverrides struct {
	service *Service
}

func (u *UserOverrides) ListActiveFor(ctx context.Context, userID int64) (map[string]permission.Set, error) {
	return u.service.ListActiveFor(ctx, UserScope(userID))
}

func (u *UserOverrides) ReplaceAll(ctx context.Context, userID int64, assignments []Assignment) error {
	return u.service.ReplaceAll(ctx, UserScope(userID), assignments)
}

func (u *UserOverrides) History(ctx context.Context, userID int64) ([]Record, error) {
	return u.service.History(ctx, UserScope(userID))
}
