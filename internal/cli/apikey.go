package cli

import (
	"encoding/json"
	"fmt"

	"github.com/rpggio/clmcore/internal/sqlite"
	"github.com/spf13/cobra"
)

// APIKeyOutput is the JSON form of a created key.
type APIKeyOutput struct {
	TenantID string `json:"tenant_id"`
	Token    string `json:"token"`
}

// NewAPIKeyCommand creates the apikey command group.
func NewAPIKeyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage bearer tokens for the HTTP surfaces",
	}
	cmd.AddCommand(newAPIKeyCreateCommand(rootOpts))
	return cmd
}

func newAPIKeyCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath, tenantID, description string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for a tenant",
		Long: `Generate a bearer token bound to --tenant and store its hash in the database.

The token is printed once and cannot be recovered afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := sqlite.New(dbPath)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "open database", Err: err}
			}
			defer db.Close()
			if err := db.RunMigrations(); err != nil {
				return &ExitError{Code: ExitCommandError, Message: "migrate database", Err: err}
			}

			token, err := sqlite.NewAPIKeyStore(db).Create(cmd.Context(), tenantID, description)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "create api key", Err: err}
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return json.NewEncoder(out).Encode(APIKeyOutput{TenantID: tenantID, Token: token})
			}
			fmt.Fprintln(out, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "clm.db", "path to the server database")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant the key authenticates as (required)")
	cmd.Flags().StringVar(&description, "description", "", "free-form note stored with the key")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}
