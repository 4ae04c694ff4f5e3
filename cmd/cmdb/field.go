package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newFieldCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "field",
		Short: "Manage schema fields",
	}

	var meta string
	add := &cobra.Command{
		Use:   "add <schema> <field>",
		Short: "Add a field to a schema, backfilling existing records",
		Long: `Add a field to a schema. The --meta document may set nullable,
unique, default, reference and type. When the schema already has records
and the field is not nullable, every record receives the default.

Example:
  cmdb field add host port --meta '{"default":"22","type":{"name":"Int","option":{"min":1,"max":65535}}}'
  cmdb field add host owner --meta '{"nullable":true,"reference":{"schema":"person","field":"name"}}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := parseMeta(meta)
			if err != nil {
				return err
			}
			e, _, err := a.engine()
			if err != nil {
				return err
			}
			f, err := e.AddField(cmd.Context(), args[0], args[1], raw)
			if err != nil {
				return err
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), f)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), f.FieldID)
			return err
		},
	}
	add.Flags().StringVar(&meta, "meta", "", "field metadata as JSON")

	list := &cobra.Command{
		Use:   "list <schema>",
		Short: "List the live fields of a schema",
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
			fields, err := s.ListFields(cmd.Context(), schema.SchemaID)
			if err != nil {
				return err
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), fields)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, f := range fields {
				m, err := json.Marshal(f.Meta)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", f.FieldID, f.Name, m)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}
