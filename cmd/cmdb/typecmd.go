package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cmdb/pkg/typedvalue"
)

func newTypeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "type",
		Short: "Work with typed values",
	}
	stringify := &cobra.Command{
		Use:   "stringify [descriptor]",
		Short: "Validate and serialize a typed value",
		Long: `Read a descriptor document {"type", "value", "option"} from the
argument, or from stdin when none is given, and print the canonical
serialized value.

Example:
  cmdb type stringify '{"type":"IP","value":"10.0.0.1","option":{"prefix":"10."}}'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			if len(args) == 1 {
				data = []byte(args[0])
			} else {
				var err error
				if data, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			d, err := typedvalue.ParseDescriptor(data)
			if err != nil {
				return err
			}
			text, err := a.registry.Stringify(d)
			if err != nil {
				return err
			}
			if a.flagJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"value": text,
					"cache": a.registry.Stats(),
				})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.AddCommand(stringify)
	return cmd
}
