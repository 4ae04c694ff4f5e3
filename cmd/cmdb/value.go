package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "value",
		Short: "Manage record values",
	}
	set := &cobra.Command{
		Use:   "set <entity-id> <field> <value>",
		Short: "Set the value of a field on a record",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := a.engine()
			if err != nil {
				return err
			}
			v, err := e.SetValue(cmd.Context(), args[0], args[1], parseValue(args[2]))
			if err != nil {
				return err
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), v)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), v.Value)
			return err
		},
	}
	cmd.AddCommand(set)
	return cmd
}
