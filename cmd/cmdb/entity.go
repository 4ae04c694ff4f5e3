package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cmdb/pkg/cmdb"
	"github.com/mesh-intelligence/cmdb/pkg/types"
)

func newEntityCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity",
		Short: "Manage records",
	}

	create := &cobra.Command{
		Use:   "create <schema> [field=value...]",
		Short: "Create a record",
		Long: `Create a record of a schema. Values are given as field=value pairs;
a value that parses as JSON is used as such, anything else as a string.
Fields left out take their default.

Example:
  cmdb entity create host ip=10.0.0.7 port=22`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			e, _, err := a.engine()
			if err != nil {
				return err
			}
			ent, err := e.CreateEntity(cmd.Context(), args[0], values)
			if err != nil {
				return err
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), ent)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ent.EntityID)
			return err
		},
	}

	var page types.Page
	var all bool
	list := &cobra.Command{
		Use:   "list <schema>",
		Short: "List the live records of a schema in id order",
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

			var entities []*types.Entity
			if all {
				stream := cmdb.StreamEntities(cmd.Context(), s, schema.SchemaID, a.cfg.EffectivePageSize())
				for stream.Next() {
					entities = append(entities, stream.Entity())
				}
				if err := stream.Err(); err != nil {
					return err
				}
			} else if entities, err = s.ListEntities(cmd.Context(), schema.SchemaID, page); err != nil {
				return err
			}

			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), entities)
			}
			for _, ent := range entities {
				fmt.Fprintln(cmd.OutOrStdout(), ent.EntityID)
			}
			return nil
		},
	}
	pageFlags(list, &page)
	list.Flags().BoolVar(&all, "all", false, "stream every record, ignoring --after and --limit")

	show := &cobra.Command{
		Use:   "show <entity-id>",
		Short: "Show the values of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := a.engine()
			if err != nil {
				return err
			}
			values, err := e.EntityValues(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), values)
			}
			names := make([]string, 0, len(values))
			for name := range values {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%v\n", name, values[name])
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <entity-id>",
		Short: "Soft-delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.store()
			if err != nil {
				return err
			}
			return s.DeleteEntity(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(create, list, show, del)
	return cmd
}
