package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/mapping/internal/cli/ui"
	"github.com/conduit-lang/mapping/internal/configuration"
	"github.com/conduit-lang/mapping/internal/mapping"
	"github.com/conduit-lang/mapping/internal/rdbms"
)

var (
	ddlProviderFlag string
	ddlDropFlag     bool
	ddlOutputFlag   string
	ddlApplyFlag    bool
	ddlYesFlag      bool
)

// confirm asks a yes/no question; tests replace it
var confirm = func(message string) (bool, error) {
	answer := false
	prompt := &survey.Confirm{Message: message, Default: false}
	if err := survey.AskOne(prompt, &answer); err != nil {
		return false, err
	}
	return answer, nil
}

// NewDDLCommand creates the ddl command
func NewDDLCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Generate the DDL script of a storage provider",
		Long: `Generate the CREATE statements for the tables and views a storage provider
holds, in the provider's SQL dialect.

Enum types come first, then tables, then the filter and union views
selecting from them. With --drop, DROP statements for the same entities
precede the script. With --apply the statements run in one transaction
against the provider's database instead of being printed.`,
		Example: `  # Script of the default provider
  mapping ddl

  # Recreate the reporting schema, written to a file
  mapping ddl --provider reporting --drop --output schema/reporting.sql

  # Create the schema in the database of the default provider
  mapping ddl --apply`,
		Args: cobra.NoArgs,
		RunE: runDDL,
	}

	cmd.Flags().StringVarP(&ddlProviderFlag, "provider", "p", "", "Storage provider (default: storage.default_provider)")
	cmd.Flags().BoolVar(&ddlDropFlag, "drop", false, "Drop existing views, tables and enum types first")
	cmd.Flags().StringVarP(&ddlOutputFlag, "output", "o", "", "Write the script to a file instead of stdout")
	cmd.Flags().BoolVar(&ddlApplyFlag, "apply", false, "Execute the statements against the provider's database")
	cmd.Flags().BoolVarP(&ddlYesFlag, "yes", "y", false, "Skip the confirmation prompt of --apply --drop")

	return cmd
}

func runDDL(cmd *cobra.Command, args []string) error {
	if ddlApplyFlag && ddlOutputFlag != "" {
		return fmt.Errorf("--apply and --output cannot be combined")
	}

	env, err := loadEnvironment(cmd, false)
	if err != nil {
		return err
	}
	cfg, err := env.build(cmd)
	if err != nil {
		return err
	}

	provider, err := ddlProvider(cfg, ddlProviderFlag)
	if err != nil {
		return err
	}
	statements, err := generateStatements(cfg, provider, ddlDropFlag)
	if err != nil {
		return err
	}

	if ddlApplyFlag {
		return applyDDL(cmd, env, provider, statements)
	}

	script := ""
	if len(statements) > 0 {
		script = strings.Join(statements, "\n\n") + "\n"
	}

	if ddlOutputFlag == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), script)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(ddlOutputFlag), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(ddlOutputFlag, []byte(script), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ddlOutputFlag, err)
	}
	ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Wrote %s", ddlOutputFlag), noColorFlag)
	return nil
}

// ddlProvider returns the named provider, or the default provider when
// name is empty
func ddlProvider(cfg *configuration.MappingConfiguration, name string) (*rdbms.ProviderDefinition, error) {
	providers := cfg.StorageProviders()
	if name == "" {
		return providers.Default(), nil
	}
	p, ok := providers.Provider(name)
	if !ok {
		return nil, mapping.NewNotFoundError("storage provider", name)
	}
	return p, nil
}

// generateStatements returns the DDL statements of provider's entities,
// preceded by their DROP statements when drop is set
func generateStatements(cfg *configuration.MappingConfiguration, provider *rdbms.ProviderDefinition, drop bool) ([]string, error) {
	entities := rdbms.FilterByProvider(cfg.StorageEntities(), provider.Name)
	generator := rdbms.NewDDLGenerator(provider.Dialect)

	statements, err := generator.GenerateStatements(entities)
	if err != nil {
		return nil, fmt.Errorf("failed to generate DDL for provider %s: %w", provider.Name, err)
	}
	if drop {
		statements = append(generator.GenerateDropStatements(entities), statements...)
	}
	return statements, nil
}

func applyDDL(cmd *cobra.Command, env *environment, provider *rdbms.ProviderDefinition, statements []string) error {
	p, ok := env.config.Provider(provider.Name)
	if !ok || p.DSN == "" {
		return fmt.Errorf("storage provider %s has no dsn configured", provider.Name)
	}
	if len(statements) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), ui.Warning(fmt.Sprintf("Provider %s holds no tables or views", provider.Name), noColorFlag))
		return nil
	}

	if ddlDropFlag && !ddlYesFlag {
		ok, err := confirm(fmt.Sprintf("Drop and recreate every table and view of provider %s?", provider.Name))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
			return nil
		}
	}

	db, err := openDatabase(p.DriverName(), p.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database of provider %s: %w", provider.Name, err)
	}
	defer db.Close()

	if err := rdbms.Apply(cmdContext(cmd), db, statements); err != nil {
		return fmt.Errorf("failed to apply DDL to provider %s: %w", provider.Name, err)
	}
	ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Applied %d statements to provider %s", len(statements), provider.Name), noColorFlag)
	return nil
}
