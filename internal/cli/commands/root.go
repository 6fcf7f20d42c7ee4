package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/mapping/internal/cli/config"
	"github.com/conduit-lang/mapping/internal/cli/ui"
	"github.com/conduit-lang/mapping/internal/configuration"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

var (
	configPathFlag  string
	domainFilesFlag []string
	noColorFlag     bool
	verboseFlag     bool
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mapping",
		Short: "Build, validate and inspect persistence mappings",
		Long: color.CyanString(`mapping - persistence mapping configuration tool

Reads a domain description, builds the frozen mapping configuration and
derives the relational storage model from it.

Features:
  • Validates inheritance hierarchies, relations and storage entities
  • Inspects types, relations and tables of the mapping
  • Generates DDL for PostgreSQL and SQLite providers
  • Verifies the mapping against a live database
  • Serves the mapping over a JSON introspection API`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColorFlag {
				color.NoColor = true
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPathFlag, "config", "c", "", "Path to mapping.yaml (default: ./mapping.yaml)")
	flags.StringSliceVarP(&domainFilesFlag, "domain", "d", nil, "Domain files, overriding domain.files")
	flags.BoolVar(&noColorFlag, "no-color", false, "Disable colored output")
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "Log build phases")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewValidateCommand())
	rootCmd.AddCommand(NewInspectCommand())
	rootCmd.AddCommand(NewDDLCommand())
	rootCmd.AddCommand(NewVerifyCommand())
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewTokenCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the mapping tool version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			out := cmd.OutOrStdout()

			titleColor.Fprint(out, "mapping version: ")
			fmt.Fprintln(out, Version)
			titleColor.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)
			titleColor.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)
			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		var reported *reportedError
		if !errors.As(err, &reported) {
			errorColor := color.New(color.FgRed, color.Bold)
			errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return err
	}
	return nil
}

// reportedError marks an error whose details a command already printed
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// environment is the configuration and logger shared by the commands
type environment struct {
	config *config.Config
	logger *zap.Logger
}

// loadEnvironment loads mapping.yaml and applies the global flags. The
// logger is a no-op unless --verbose is set or forceLogger is true.
func loadEnvironment(cmd *cobra.Command, forceLogger bool) (*environment, error) {
	cfg, err := config.Load(configPathFlag)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.ConfigError(err, noColorFlag))
		return nil, &reportedError{err: err}
	}
	if len(domainFilesFlag) > 0 {
		cfg.Domain.Files = domainFilesFlag
	}

	logger := zap.NewNop()
	if verboseFlag || forceLogger {
		if logger, err = cfg.NewLogger(); err != nil {
			return nil, err
		}
	}
	return &environment{config: cfg, logger: logger}, nil
}

// builder returns the function building the mapping configuration from
// the configured domain files
func (e *environment) builder() (configuration.BuilderFunc, error) {
	if len(e.config.Domain.Files) == 0 {
		return nil, errors.New("no domain files configured: set domain.files in mapping.yaml or pass --domain")
	}
	providers, err := e.config.ProviderRegistry()
	if err != nil {
		return nil, err
	}

	files := e.config.Domain.Files
	opts := []configuration.Option{
		configuration.WithLogger(e.logger),
		configuration.WithStorageProviders(providers),
		configuration.WithValidationOptions(e.config.ValidationOptions(e.logger)),
	}
	return func() (*configuration.MappingConfiguration, error) {
		return configuration.BuildFromFiles(files, opts...)
	}, nil
}

// build builds the mapping configuration, printing validation failures
func (e *environment) build(cmd *cobra.Command) (*configuration.MappingConfiguration, error) {
	builder, err := e.builder()
	if err != nil {
		return nil, err
	}
	cfg, err := builder()
	if err != nil {
		if report(cmd.ErrOrStderr(), err) {
			return nil, &reportedError{err: err}
		}
		return nil, err
	}
	return cfg, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func validateFormat(format string) error {
	if format != "table" && format != "json" {
		return fmt.Errorf("invalid format %q (supported: table, json)", format)
	}
	return nil
}
