package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/menu-authz/internal/access"
	"github.com/frahmantamala/menu-authz/internal/auth"
	"github.com/frahmantamala/menu-authz/internal/core/permission"
	"github.com/frahmantamala/menu-authz/internal/grant"
)

var (
	accessUserID int64
	accessRole   string
	accessTree   bool
	accessMenu   string
	accessAction string
)

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Inspect effective menu permissions",
	Long:  `Resolve effective menus, check single permissions, list grant history and mint development tokens.`,
}

var accessResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the effective menus of a user as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := initializeDependencies(true)
		if err != nil {
			return err
		}
		defer deps.Close()

		resolve := deps.Resolver.Resolve
		if accessTree {
			resolve = deps.Resolver.ResolveTree
		}
		entries, err := resolve(context.Background(), accessUserID, accessRole)
		if err != nil {
			return err
		}
		return printJSON(cmd, access.MenusResponse{UserID: accessUserID, Role: accessRole, Menus: entries})
	},
}

var accessCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether a user may perform an action on a menu",
	RunE: func(cmd *cobra.Command, args []string) error {
		action, ok := permission.ParseAction(accessAction)
		if !ok {
			return fmt.Errorf("unknown action %q", accessAction)
		}

		deps, err := initializeDependencies(true)
		if err != nil {
			return err
		}
		defer deps.Close()

		allowed, err := deps.Resolver.Check(context.Background(), accessUserID, accessRole, accessMenu, action)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{
			"user_id":  accessUserID,
			"role":     accessRole,
			"menu_key": accessMenu,
			"action":   action,
			"allowed":  allowed,
		})
	},
}

var accessHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Print every grant row of a role or every override row of a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := historyScope()
		if err != nil {
			return err
		}

		deps, err := initializeDependencies(true)
		if err != nil {
			return err
		}
		defer deps.Close()

		records, err := deps.Grants.History(context.Background(), scope)
		if err != nil {
			return err
		}
		return printJSON(cmd, grant.HistoryResponse{Scope: string(scope.Kind), ID: scope.ID(), Records: records})
	},
}

var accessTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configDir)
		if err != nil {
			return err
		}

		token, expiresAt, err := auth.NewTokenManager(cfg.Security).GenerateAccessToken(accessUserID, accessRole)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_at":   expiresAt.Format(time.RFC3339),
		})
	},
}

func historyScope() (grant.Scope, error) {
	switch {
	case accessRole != "" && accessUserID > 0:
		return grant.Scope{}, errors.New("use either --role or --user, not both")
	case accessRole != "":
		return grant.RoleScope(accessRole), nil
	case accessUserID > 0:
		return grant.UserScope(accessUserID), nil
	default:
		return grant.Scope{}, errors.New("one of --role or --user is required")
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{accessResolveCmd, accessCheckCmd, accessHistoryCmd, accessTokenCmd} {
		c.Flags().Int64Var(&accessUserID, "user", 0, "user id")
		c.Flags().StringVar(&accessRole, "role", "", "role name")
		accessCmd.AddCommand(c)
	}
	accessResolveCmd.Flags().BoolVar(&accessTree, "tree", false, "nest the result by parent")
	accessCheckCmd.Flags().StringVar(&accessMenu, "menu", "", "menu key")
	accessCheckCmd.Flags().StringVar(&accessAction, "action", "read", "create, read, update or delete")
	_ = accessCheckCmd.MarkFlagRequired("menu")
	_ = accessTokenCmd.MarkFlagRequired("user")
}
