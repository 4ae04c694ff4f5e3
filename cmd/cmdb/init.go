package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration and the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.attachBackend(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.flagJSON {
				return printJSON(out, map[string]string{"config": a.configDir, "data": a.cfg.DataDir})
			}
			fmt.Fprintln(out, "cmdb initialized")
			fmt.Fprintln(out, "  config:", a.configDir)
			fmt.Fprintln(out, "  data:  ", a.cfg.DataDir)
			return nil
		},
	}
}
