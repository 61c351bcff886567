package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/cosmarium/pkg/app"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of cosmarium",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cosmarium version %s\n", app.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
