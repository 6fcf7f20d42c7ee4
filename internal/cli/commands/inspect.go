package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/mapping/internal/cli/ui"
	"github.com/conduit-lang/mapping/internal/configuration"
	"github.com/conduit-lang/mapping/internal/introspect"
	"github.com/conduit-lang/mapping/internal/mapping"
	"github.com/conduit-lang/mapping/internal/rdbms"
)

var (
	inspectFormatFlag   string
	inspectKindFlag     string
	inspectProviderFlag string
)

// NewInspectCommand creates the inspect command
func NewInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect the mapping configuration",
		Long: `Inspect the types, relations and storage entities of the built mapping
configuration.

All subcommands support --format json for tooling.`,
		Example: `  # List all classes
  mapping inspect types --kind class

  # Show one type with its composed properties and end points
  mapping inspect type Sales.Customer

  # List the relations
  mapping inspect relations

  # Show the tables and views of one provider
  mapping inspect entities --provider reporting`,
	}

	cmd.PersistentFlags().StringVarP(&inspectFormatFlag, "format", "f", "table", "Output format (table, json)")

	cmd.AddCommand(newInspectTypesCommand())
	cmd.AddCommand(newInspectTypeCommand())
	cmd.AddCommand(newInspectRelationsCommand())
	cmd.AddCommand(newInspectRelationCommand())
	cmd.AddCommand(newInspectEntitiesCommand())

	return cmd
}

func newInspectTypesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List the mapped types",
		Args:  cobra.NoArgs,
		RunE: inspect(func(cmd *cobra.Command, args []string, cfg *configuration.MappingConfiguration) error {
			if inspectKindFlag != "" && inspectKindFlag != "class" && inspectKindFlag != "interface" {
				return fmt.Errorf("invalid kind %q (supported: class, interface)", inspectKindFlag)
			}

			summaries := make([]introspect.TypeSummary, 0)
			for _, td := range cfg.GetTypeDefinitions() {
				summary := introspect.NewTypeSummary(td)
				if inspectKindFlag == "" || summary.Kind == inspectKindFlag {
					summaries = append(summaries, summary)
				}
			}
			if inspectFormatFlag == "json" {
				return writeJSON(cmd.OutOrStdout(), summaries)
			}

			table := ui.NewTable(cmd.OutOrStdout(), noColorFlag, "TYPE", "KIND", "CLASS ID", "ENTITY", "PROVIDER")
			for _, s := range summaries {
				table.AddRow(s.Name, s.Kind, s.ClassID, entityLabel(s.Entity, s.EntityKind), s.Provider)
			}
			table.Render()
			return nil
		}),
	}

	cmd.Flags().StringVarP(&inspectKindFlag, "kind", "k", "", "Only list classes or interfaces")

	return cmd
}

func newInspectTypeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "type <name>",
		Short: "Show a type with its properties and relation end points",
		Args:  cobra.ExactArgs(1),
		RunE: inspect(func(cmd *cobra.Command, args []string, cfg *configuration.MappingConfiguration) error {
			td, err := cfg.GetTypeDefinitionOr(args[0], func(typeName string) error {
				return typeNotFound(cmd, cfg, typeName)
			})
			if err != nil {
				return err
			}

			view, err := introspect.NewTypeView(td)
			if err != nil {
				return err
			}
			if inspectFormatFlag == "json" {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			renderTypeView(cmd, view)
			return nil
		}),
	}
}

func newInspectRelationsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "relations",
		Short: "List the relations",
		Args:  cobra.NoArgs,
		RunE: inspect(func(cmd *cobra.Command, args []string, cfg *configuration.MappingConfiguration) error {
			relations := cfg.GetRelationDefinitions()
			views := make([]introspect.RelationView, 0, len(relations))
			for _, rd := range relations {
				views = append(views, introspect.NewRelationView(rd))
			}
			if inspectFormatFlag == "json" {
				return writeJSON(cmd.OutOrStdout(), views)
			}

			table := ui.NewTable(cmd.OutOrStdout(), noColorFlag, "RELATION", "KIND", "FROM", "TO")
			for _, v := range views {
				table.AddRow(v.ID, v.Kind, endPointLabel(v.EndPoints[0]), endPointLabel(v.EndPoints[1]))
			}
			table.Render()
			return nil
		}),
	}
}

func newInspectRelationCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "relation <id>",
		Short: "Show a relation and both of its end points",
		Args:  cobra.ExactArgs(1),
		RunE: inspect(func(cmd *cobra.Command, args []string, cfg *configuration.MappingConfiguration) error {
			rd, err := cfg.GetRelationDefinition(args[0])
			if err != nil {
				ids := make([]string, 0)
				for _, r := range cfg.GetRelationDefinitions() {
					ids = append(ids, r.ID())
				}
				fmt.Fprintln(cmd.ErrOrStderr(), ui.RelationNotFound(args[0], ui.SimilarNames(args[0], ids), noColorFlag))
				return &reportedError{err: err}
			}

			view := introspect.NewRelationView(rd)
			if inspectFormatFlag == "json" {
				return writeJSON(cmd.OutOrStdout(), view)
			}

			out := cmd.OutOrStdout()
			ui.Header(out, view.ID, noColorFlag)
			fmt.Fprintf(out, "Kind: %s\n\n", view.Kind)
			table := ui.NewTable(out, noColorFlag, "TYPE", "PROPERTY", "CARDINALITY", "MANDATORY", "VIRTUAL")
			for _, ep := range view.EndPoints {
				property := ep.Property
				if ep.Anonymous {
					property = "(anonymous)"
				}
				table.AddRow(ep.Type, property, ep.Cardinality, yesNo(ep.Mandatory), yesNo(ep.Virtual))
			}
			table.Render()
			return nil
		}),
	}
}

func newInspectEntitiesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List the tables and views of the storage model",
		Args:  cobra.NoArgs,
		RunE: inspect(func(cmd *cobra.Command, args []string, cfg *configuration.MappingConfiguration) error {
			entities := cfg.StorageEntities()
			if inspectProviderFlag != "" {
				if _, ok := cfg.StorageProviders().Provider(inspectProviderFlag); !ok {
					return mapping.NewNotFoundError("storage provider", inspectProviderFlag)
				}
				entities = rdbms.FilterByProvider(entities, inspectProviderFlag)
			}

			views := make([]introspect.EntityView, 0, len(entities))
			for _, e := range entities {
				views = append(views, introspect.NewEntityView(e))
			}
			if inspectFormatFlag == "json" {
				return writeJSON(cmd.OutOrStdout(), views)
			}

			table := ui.NewTable(cmd.OutOrStdout(), noColorFlag, "ENTITY", "KIND", "PROVIDER", "COLUMNS")
			for _, v := range views {
				names := make([]string, len(v.Columns))
				for i, c := range v.Columns {
					names[i] = c.Name
				}
				table.AddRow(v.Name, v.Kind, v.Provider, strings.Join(names, ", "))
			}
			table.Render()
			return nil
		}),
	}

	cmd.Flags().StringVarP(&inspectProviderFlag, "provider", "p", "", "Only list entities of this storage provider")

	return cmd
}

// inspect wraps a subcommand that needs the built configuration
func inspect(run func(cmd *cobra.Command, args []string, cfg *configuration.MappingConfiguration) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(inspectFormatFlag); err != nil {
			return err
		}
		env, err := loadEnvironment(cmd, false)
		if err != nil {
			return err
		}
		cfg, err := env.build(cmd)
		if err != nil {
			return err
		}
		return run(cmd, args, cfg)
	}
}

func typeNotFound(cmd *cobra.Command, cfg *configuration.MappingConfiguration, typeName string) error {
	names := make([]string, 0)
	for _, td := range cfg.GetTypeDefinitions() {
		names = append(names, td.TypeName())
	}
	fmt.Fprintln(cmd.ErrOrStderr(), ui.TypeNotFound(typeName, ui.SimilarNames(typeName, names), noColorFlag))
	return &reportedError{err: mapping.NewNotFoundError("type", typeName)}
}

func renderTypeView(cmd *cobra.Command, view introspect.TypeView) {
	out := cmd.OutOrStdout()
	ui.Header(out, view.Name, noColorFlag)

	details := ui.NewKeyValueTable(out, noColorFlag)
	details.AddRow("Kind", view.Kind)
	if view.ClassID != "" {
		details.AddRow("Class ID", view.ClassID)
	}
	if view.Abstract {
		details.AddRow("Abstract", "yes")
	}
	if view.BaseClass != "" {
		details.AddRow("Base class", view.BaseClass)
	}
	if len(view.DerivedClasses) > 0 {
		details.AddRow("Derived classes", strings.Join(view.DerivedClasses, ", "))
	}
	if len(view.Interfaces) > 0 {
		details.AddRow("Interfaces", strings.Join(view.Interfaces, ", "))
	}
	if len(view.ImplementingClasses) > 0 {
		details.AddRow("Implemented by", strings.Join(view.ImplementingClasses, ", "))
	}
	if view.StorageGroup != "" {
		details.AddRow("Storage group", view.StorageGroup)
	}
	details.AddRow("Entity", entityLabel(view.Entity, view.EntityKind))
	details.AddRow("Provider", view.Provider)
	details.Render()

	if len(view.Properties) > 0 {
		fmt.Fprintln(out)
		properties := ui.NewTable(out, noColorFlag, "PROPERTY", "KIND", "NULLABLE", "STORAGE", "COLUMNS")
		for _, p := range view.Properties {
			properties.AddRow(p.Name, p.Kind, yesNo(p.Nullable), p.StorageClass, strings.Join(p.Columns, ", "))
		}
		properties.Render()
	}

	if len(view.EndPoints) > 0 {
		fmt.Fprintln(out)
		endPoints := ui.NewTable(out, noColorFlag, "END POINT", "CARDINALITY", "MANDATORY", "VIRTUAL", "RELATION")
		for _, ep := range view.EndPoints {
			endPoints.AddRow(ep.Property, ep.Cardinality, yesNo(ep.Mandatory), yesNo(ep.Virtual), ep.Relation)
		}
		endPoints.Render()
	}
}

func entityLabel(name, kind string) string {
	if name == "" {
		return "-"
	}
	if kind == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, strings.ReplaceAll(kind, "_", " "))
}

func endPointLabel(ep introspect.RelationEndPointView) string {
	if ep.Anonymous {
		return ep.Type
	}
	return ep.Property
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
