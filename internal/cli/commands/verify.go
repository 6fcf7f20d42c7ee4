package commands

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/mapping/internal/cli/config"
	"github.com/conduit-lang/mapping/internal/cli/ui"
	"github.com/conduit-lang/mapping/internal/configuration"
	"github.com/conduit-lang/mapping/internal/rdbms"
)

var (
	verifyProviderFlag string
	verifyTimeoutFlag  time.Duration
)

// openDatabase opens the database of a provider; tests replace it
var openDatabase = sql.Open

// NewVerifyCommand creates the verify command
func NewVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare the storage model with live databases",
		Long: `Connect to the database of every configured storage provider and check
that each mapped table and view exists with all of its columns.

Providers without a DSN are skipped. PostgreSQL providers connect with the
pgx driver unless storage.providers[].driver selects another one, such as
"postgres" for lib/pq. SQLite providers use go-sqlite3.`,
		Example: `  # Verify every provider
  mapping verify

  # Verify one provider
  mapping verify --provider reporting`,
		Args: cobra.NoArgs,
		RunE: runVerify,
	}

	cmd.Flags().StringVarP(&verifyProviderFlag, "provider", "p", "", "Only verify this storage provider")
	cmd.Flags().DurationVar(&verifyTimeoutFlag, "timeout", 30*time.Second, "Timeout for each provider")

	return cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd, false)
	if err != nil {
		return err
	}

	providers := env.config.Storage.Providers
	if verifyProviderFlag != "" {
		p, ok := env.config.Provider(verifyProviderFlag)
		if !ok {
			return fmt.Errorf("storage provider %s is not configured", verifyProviderFlag)
		}
		providers = []config.ProviderConfig{p}
	}

	cfg, err := env.build(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	total := 0
	for _, p := range providers {
		if p.DSN == "" {
			fmt.Fprintln(out, ui.Warning(fmt.Sprintf("Skipping provider %s: no dsn configured", p.Name), noColorFlag))
			continue
		}

		mismatches, err := verifyProvider(cmdContext(cmd), cfg, p)
		if err != nil {
			return err
		}
		total += len(mismatches)

		if len(mismatches) == 0 {
			ui.WriteSuccess(out, fmt.Sprintf("Provider %s matches the mapping", p.Name), noColorFlag)
			continue
		}

		errorColor := color.New(color.FgRed, color.Bold)
		if noColorFlag {
			errorColor.DisableColor()
		}
		errorColor.Fprintf(out, "✗ Provider %s has %d mismatches\n", p.Name, len(mismatches))
		for _, m := range mismatches {
			fmt.Fprintf(out, "   - %s\n", m)
		}
	}

	if total > 0 {
		return &reportedError{err: fmt.Errorf("%d schema mismatches found", total)}
	}
	return nil
}

func verifyProvider(ctx context.Context, cfg *configuration.MappingConfiguration, p config.ProviderConfig) ([]rdbms.Mismatch, error) {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeoutFlag)
	defer cancel()

	provider, ok := cfg.StorageProviders().Provider(p.Name)
	if !ok {
		return nil, fmt.Errorf("storage provider %s is not registered", p.Name)
	}

	db, err := openDatabase(p.DriverName(), p.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database of provider %s: %w", p.Name, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database of provider %s: %w", p.Name, err)
	}

	entities := rdbms.FilterByProvider(cfg.StorageEntities(), p.Name)
	return rdbms.NewVerifier(db, provider.Dialect).Verify(ctx, entities)
}
