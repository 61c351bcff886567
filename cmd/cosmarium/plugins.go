package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Inspect plugins",
}

var pluginsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and discovered plugins",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer shutdown(ctx, a)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tVERSION\tSTATUS\tSOURCE\tDESCRIPTION")
		for _, e := range a.Plugins().Registry().List() {
			status := "available"
			if a.Plugins().IsLoaded(e.Info.Name) {
				status = "loaded"
			} else if !e.Builtin() {
				status = "manifest only"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Info.Name, e.Info.Version, status, e.Source, e.Info.Description)
		}
		return w.Flush()
	},
}

func init() {
	pluginsCmd.AddCommand(pluginsListCmd)
	rootCmd.AddCommand(pluginsCmd)
}
