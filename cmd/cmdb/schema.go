package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

func newSchemaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage schemas",
	}

	var description string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			schema := &types.Schema{Name: args[0], Description: description}
			if err := s.CreateSchema(cmd.Context(), schema); err != nil {
				return err
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), schema)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), schema.SchemaID)
			return err
		},
	}
	create.Flags().StringVar(&description, "description", "", "schema description")

	var page types.Page
	list := &cobra.Command{
		Use:   "list",
		Short: "List live schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			schemas, err := s.ListSchemas(cmd.Context(), page)
			if err != nil {
				return err
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), schemas)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, sc := range schemas {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", sc.SchemaID, sc.Name, sc.Description)
			}
			return tw.Flush()
		},
	}
	pageFlags(list, &page)

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Soft-delete a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			schema, err := s.FindSchema(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("schema %q: %w", args[0], err)
			}
			return s.DeleteSchema(cmd.Context(), schema.SchemaID)
		},
	}

	cmd.AddCommand(create, list, del)
	return cmd
}

func pageFlags(cmd *cobra.Command, page *types.Page) {
	cmd.Flags().StringVar(&page.After, "after", "", "list records with ids after this one")
	cmd.Flags().IntVar(&page.Limit, "limit", types.DefaultPageSize, "maximum number of records")
}
