package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	initName     string
	initTemplate string
)

var initCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Create a new writing project",
	Long: `Create a project directory holding project.json and an empty content
folder. The project becomes the most recent one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		name := initName
		if name == "" {
			name = filepath.Base(path)
		}

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer shutdown(ctx, a)

		if err := a.CreateProject(ctx, name, path, initTemplate); err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized project %q in %s\n", name, path)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initName, "name", "", "Project name (default is the directory name)")
	initCmd.Flags().StringVar(&initTemplate, "template", "", "Project template (default from config)")
	rootCmd.AddCommand(initCmd)
}
