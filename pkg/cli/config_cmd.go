package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bricksync/internal/config"
	"bricksync/internal/domain"
)

// parseSet turns repeated key=value flags into a map. Later keys win.
func parseSet(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, domain.ErrValidation("invalid --set %q: want key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func newSyncCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Manage sync definitions",
	}
	cmd.AddCommand(newSyncAddCmd(a))
	return cmd
}

func newSyncAddCmd(a *app) *cobra.Command {
	var (
		def  domain.SyncDefinition
		sets []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a sync definition to the config file",
		Example: `  bricksync sync add --source main.sales --source-provider dbx --target-provider sf
  bricksync sync add --source main.sales.orders --source-provider dbx --target-provider glue --set target_schema=sales_mirror`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := parseSet(sets)
			if err != nil {
				return err
			}
			def.SourceConfiguration = conf
			if err := config.Edit(a.path(), func(cfg *config.Config) error {
				return cfg.AddSync(def)
			}); err != nil {
				return err
			}
			if a.output == "json" {
				return printJSON(a.stdout, def)
			}
			_, err = fmt.Fprintf(a.stdout, "added sync %s (%s -> %s)\n", def.Source, def.SourceProvider, def.TargetProvider)
			return err
		},
	}
	cmd.Flags().StringVar(&def.Source, "source", "", "Source catalog, catalog.schema or catalog.schema.table")
	cmd.Flags().StringVar(&def.SourceProvider, "source-provider", "", "Name of the source provider")
	cmd.Flags().StringVar(&def.TargetProvider, "target-provider", "", "Name of the target provider")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Source configuration key=value (repeatable)")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("source-provider")
	_ = cmd.MarkFlagRequired("target-provider")
	return cmd
}

func newProviderCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage catalog providers",
	}
	cmd.AddCommand(newProviderAddCmd(a))
	cmd.AddCommand(newProviderListCmd(a))
	return cmd
}

func newProviderAddCmd(a *app) *cobra.Command {
	var (
		p    config.ProviderConfig
		kind string
		sets []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a provider to the config file",
		Long: "Add a named provider. Property values are stored as given, so a value " +
			"such as '${DATABRICKS_TOKEN}' stays a reference and is expanded at load time.",
		Example: `  bricksync provider add --name dbx --kind databricks --set host='${DATABRICKS_HOST}' --set token='${DATABRICKS_TOKEN}' --set warehouse_id=abc
  bricksync provider add --name lake --kind duckdb --lazy --set path=/data/lake.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			props, err := parseSet(sets)
			if err != nil {
				return err
			}
			p.Kind = domain.ProviderKind(strings.ToLower(kind))
			p.Properties = props
			if err := config.Edit(a.path(), func(cfg *config.Config) error {
				return cfg.AddProvider(p)
			}); err != nil {
				return err
			}
			if a.output == "json" {
				return printJSON(a.stdout, providerView(p))
			}
			_, err = fmt.Fprintf(a.stdout, "added provider %s (%s)\n", p.Name, p.Kind)
			return err
		},
	}
	cmd.Flags().StringVar(&p.Name, "name", "", "Provider name referenced by sync definitions")
	cmd.Flags().StringVar(&kind, "kind", "", "Provider kind: databricks, snowflake, glue, iceberg_rest, duckdb")
	cmd.Flags().BoolVar(&p.Lazy, "lazy", false, "Connect on first use instead of at startup")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Provider property key=value (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

type providerRow struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Lazy       bool     `json:"lazy"`
	Properties []string `json:"properties"`
}

// providerView lists property keys only; values may hold secrets.
func providerView(p config.ProviderConfig) providerRow {
	keys := make([]string, 0, len(p.Properties))
	for k := range p.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return providerRow{Name: p.Name, Kind: string(p.Kind), Lazy: p.Lazy, Properties: keys}
}

func newProviderListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			views := make([]providerRow, 0, len(cfg.Providers))
			for _, p := range cfg.Providers {
				views = append(views, providerView(p))
			}
			if a.output == "json" {
				return printJSON(a.stdout, views)
			}
			rows := make([][]string, 0, len(views))
			for _, v := range views {
				rows = append(rows, []string{v.Name, v.Kind, strconv.FormatBool(v.Lazy), dash(strings.Join(v.Properties, ","))})
			}
			return printTable(a.stdout, []string{"NAME", "KIND", "LAZY", "PROPERTIES"}, rows)
		},
	}
}
