package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/menu-authz/internal/seed"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the menu catalog and role grants",
	Long: `Create the menus of a YAML seed document whose keys are not in the catalog yet and
replace the grants of every role it lists. Without --file the embedded default document is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data := seed.Default
		if seedFile != "" {
			raw, err := os.ReadFile(seedFile)
			if err != nil {
				return fmt.Errorf("read seed file: %w", err)
			}
			data = raw
		}

		doc, err := seed.Parse(data)
		if err != nil {
			return err
		}

		deps, err := initializeDependencies(true)
		if err != nil {
			return err
		}
		defer deps.Close()

		result, err := seed.NewSeeder(deps.Menus, deps.Grants.Roles(), deps.Logger).Run(context.Background(), doc)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML seed document (defaults to the embedded seed)")
}
