package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/mapping/internal/introspect"
)

// NewTokenCommand creates the token command
func NewTokenCommand() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for reloading a served configuration",
		Long: `Issue an HS256 token signed with server.token_secret that allows
POST /configuration/reload on a server started with the same secret.`,
		Example: `  # Token for a CI job, valid for one day
  mapping token --subject ci --ttl 24h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd, false)
			if err != nil {
				return err
			}
			if env.config.Server.TokenSecret == "" {
				return fmt.Errorf("server.token_secret is not configured")
			}
			if ttl <= 0 {
				return fmt.Errorf("ttl must be positive, got: %s", ttl)
			}

			authority, err := introspect.NewTokenAuthority(env.config.Server.TokenSecret)
			if err != nil {
				return err
			}
			token, err := authority.IssueToken(subject, []string{introspect.ReloadScope}, ttl)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "mapping-cli", "Subject of the token")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Validity of the token")

	return cmd
}
