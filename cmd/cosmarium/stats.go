package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aretw0/cosmarium/pkg/document"
	"github.com/aretw0/cosmarium/pkg/plugins/markdown"
	"github.com/aretw0/cosmarium/pkg/plugins/outline"
)

var (
	statsJSON bool
	statsTop  int
)

type statsReport struct {
	Title              string               `json:"title"`
	Words              int                  `json:"words"`
	Characters         int                  `json:"characters"`
	CharactersNoSpaces int                  `json:"characters_no_spaces"`
	Paragraphs         int                  `json:"paragraphs"`
	Sentences          int                  `json:"sentences"`
	ReadingMinutes     float64              `json:"reading_minutes"`
	TopWords           []markdown.WordCount `json:"top_words"`
	Outline            []outline.Heading    `json:"outline"`
}

var statsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "Print writing statistics and the outline of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := document.Load(args[0])
		if err != nil {
			return err
		}
		stats := markdown.Analyze(doc.Content)
		report := statsReport{
			Title:              doc.Title,
			Words:              stats.Words,
			Characters:         stats.Characters,
			CharactersNoSpaces: stats.CharactersNoSpaces,
			Paragraphs:         stats.Paragraphs,
			Sentences:          stats.Sentences,
			ReadingMinutes:     stats.ReadingMinutes,
			TopWords:           stats.MostFrequent(statsTop),
			Outline:            outline.Parse([]byte(doc.Content)),
		}

		out := cmd.OutOrStdout()
		if statsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Document:\t%s\n", report.Title)
		fmt.Fprintf(w, "Words:\t%d\n", report.Words)
		fmt.Fprintf(w, "Characters:\t%d (%d without spaces)\n", report.Characters, report.CharactersNoSpaces)
		fmt.Fprintf(w, "Paragraphs:\t%d\n", report.Paragraphs)
		fmt.Fprintf(w, "Sentences:\t%d\n", report.Sentences)
		fmt.Fprintf(w, "Reading time:\t%.1f min\n", report.ReadingMinutes)
		if err := w.Flush(); err != nil {
			return err
		}

		if len(report.TopWords) > 0 {
			fmt.Fprintln(out, "\nMost frequent words:")
			for _, wc := range report.TopWords {
				fmt.Fprintf(out, "  %-20s %d\n", wc.Word, wc.Count)
			}
		}
		if len(report.Outline) > 0 {
			fmt.Fprintln(out, "\nOutline:")
			for _, h := range report.Outline {
				fmt.Fprintf(out, "  %s%s (line %d)\n", strings.Repeat("  ", h.Level-1), h.Text, h.Line)
			}
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output in JSON format")
	statsCmd.Flags().IntVar(&statsTop, "top", 5, "Number of most frequent words to list")
	rootCmd.AddCommand(statsCmd)
}
