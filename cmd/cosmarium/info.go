package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aretw0/cosmarium/internal/platform"
	"github.com/aretw0/cosmarium/pkg/project"
)

var infoJSON bool

type projectInfo struct {
	Name      string           `json:"name"`
	Path      string           `json:"path"`
	Template  string           `json:"template"`
	Author    string           `json:"author,omitempty"`
	Created   string           `json:"created"`
	Modified  string           `json:"last_modified"`
	Documents int              `json:"documents"`
	Settings  project.Settings `json:"settings"`
	Backups   []string         `json:"backups"`
}

var infoCmd = &cobra.Command{
	Use:   "info [path]",
	Short: "Show the project containing path",
	Long:  `Walk up from path (default the working directory) to the nearest project.json and describe that project.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := "."
		if len(args) == 1 {
			start = args[0]
		}
		root, err := platform.FindProjectRoot(start)
		if err != nil {
			return err
		}
		p, err := project.Load(root)
		if err != nil {
			return err
		}
		backups, err := project.ListBackups(root)
		if err != nil {
			return err
		}

		info := projectInfo{
			Name:      p.Name(),
			Path:      p.Path,
			Template:  p.Metadata.Template,
			Author:    p.Metadata.Author,
			Created:   p.Metadata.CreatedAt.Format("2006-01-02 15:04"),
			Modified:  p.Metadata.LastModified.Format("2006-01-02 15:04"),
			Documents: len(p.Documents),
			Settings:  p.Settings,
			Backups:   []string{},
		}
		for _, b := range backups {
			info.Backups = append(info.Backups, b.Name)
		}

		out := cmd.OutOrStdout()
		if infoJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Name:\t%s\n", info.Name)
		fmt.Fprintf(w, "Path:\t%s\n", info.Path)
		fmt.Fprintf(w, "Template:\t%s\n", info.Template)
		fmt.Fprintf(w, "Created:\t%s\n", info.Created)
		fmt.Fprintf(w, "Modified:\t%s\n", info.Modified)
		fmt.Fprintf(w, "Documents:\t%d\n", info.Documents)
		fmt.Fprintf(w, "Backups:\t%d\n", len(info.Backups))
		return w.Flush()
	},
}

func init() {
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(infoCmd)
}

