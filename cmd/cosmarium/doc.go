package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/cosmarium/internal/platform"
	"github.com/aretw0/cosmarium/pkg/core"
)

var (
	docProject string
	docFormat  string
)

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Manage project documents",
}

var docNewCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Create an empty document in a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := core.ParseFormat(docFormat)
		if err != nil {
			return err
		}
		start := docProject
		if start == "" {
			start = "."
		}
		root, err := platform.FindProjectRoot(start)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer shutdown(ctx, a)

		if err := a.OpenProject(ctx, root); err != nil {
			return fmt.Errorf("failed to open project: %w", err)
		}
		id, err := a.NewProjectDocument(ctx, args[0], format)
		if err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
		doc, err := a.Documents().Get(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %q at %s\n", doc.Title, doc.FilePath)
		return nil
	},
}

func init() {
	docNewCmd.Flags().StringVarP(&docProject, "project", "p", "", "Project directory (default is the project containing the working directory)")
	docNewCmd.Flags().StringVarP(&docFormat, "format", "f", "markdown", "Document format: markdown, plain_text, rich_text or html")
	docCmd.AddCommand(docNewCmd)
	rootCmd.AddCommand(docCmd)
}
