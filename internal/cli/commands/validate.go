package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/mapping/internal/cli/ui"
	"github.com/conduit-lang/mapping/internal/introspect"
	"github.com/conduit-lang/mapping/internal/validation"
)

var validateFormatFlag string

// validateResult is the JSON output of the validate command
type validateResult struct {
	Valid         bool                          `json:"valid"`
	Configuration *introspect.ConfigurationView `json:"configuration,omitempty"`
	Failures      []introspect.FailureView      `json:"failures,omitempty"`
	Error         string                        `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Build and validate the mapping configuration",
		Long: `Build the mapping configuration from the domain files and run the
persistence and standard validators.

Every failure is reported, not only the first one. The command exits with
a non-zero status when the mapping is rejected.`,
		Example: `  # Validate the domain listed in mapping.yaml
  mapping validate

  # Validate specific domain files
  mapping validate --domain sales.yaml --domain hr.yaml

  # Machine-readable output
  mapping validate --format json`,
		RunE: runValidate,
	}

	cmd.Flags().StringVarP(&validateFormatFlag, "format", "f", "table", "Output format (table, json)")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	if err := validateFormat(validateFormatFlag); err != nil {
		return err
	}

	env, err := loadEnvironment(cmd, false)
	if err != nil {
		return err
	}

	if validateFormatFlag == "json" {
		return validateJSON(cmd, env)
	}

	cfg, err := env.build(cmd)
	if err != nil {
		return err
	}

	view := introspect.NewConfigurationView(cfg)
	ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Mapping valid: %d types, %d relations, %d storage entities",
		view.Types, view.Relations, view.Entities), noColorFlag)
	return nil
}

func validateJSON(cmd *cobra.Command, env *environment) error {
	builder, err := env.builder()
	if err != nil {
		return err
	}

	cfg, buildErr := builder()
	if buildErr == nil {
		view := introspect.NewConfigurationView(cfg)
		return writeJSON(cmd.OutOrStdout(), validateResult{Valid: true, Configuration: &view})
	}

	result := validateResult{Error: buildErr.Error()}
	var validationErrs *validation.Errors
	if errors.As(buildErr, &validationErrs) {
		result.Failures = introspect.NewFailureViews(validationErrs.Failures)
	}
	if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	return &reportedError{err: buildErr}
}

// report prints the failures of a rejected mapping. It returns false for
// errors that are not validation failures.
func report(w io.Writer, err error) bool {
	var validationErrs *validation.Errors
	if !errors.As(err, &validationErrs) {
		return false
	}
	fmt.Fprintln(w, ui.ValidationFailed(validationErrs.Failures, noColorFlag))
	return true
}
