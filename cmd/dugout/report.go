package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/dugout/internal/config"
	"github.com/FranksOps/dugout/internal/report"
	"github.com/FranksOps/dugout/internal/storage"
	"github.com/FranksOps/dugout/internal/storage/backend"
)

func newReportCmd() *cobra.Command {
	var (
		format string
		top    int
		filter storage.Filter
		source string
		since  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "report <dataset>",
		Short: "Summarize a collected dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := loadViper(cmd, nil)
			if err != nil {
				return err
			}
			if _, err := config.Load(v); err != nil {
				return err
			}

			if source != "" {
				if filter.Source, err = storage.ParseSource(source); err != nil {
					return err
				}
			}
			if since > 0 {
				t := time.Now().Add(-since)
				filter.Since = &t
			}

			b, err := backend.Open(cmd.Context(), args[0], storage.Options{})
			if err != nil {
				return err
			}
			defer b.Close()

			records, err := b.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}
			summary := report.GenerateSummary(records)

			w := cmd.OutOrStdout()
			switch format {
			case "text":
				return report.WriteText(w, summary)
			case "json":
				return report.WriteJSON(w, summary)
			case "table":
				return report.WriteTable(w, summary, top)
			case "html":
				return report.WriteHTML(w, summary)
			}
			return fmt.Errorf("unknown report format %q", format)
		},
	}

	f := cmd.Flags()
	f.StringVar(&format, "format", "text", "output format: text, json, table, html")
	f.IntVar(&top, "top", 10, "rows per table in table format, 0 for all")
	f.StringVar(&filter.Forum, "forum", "", "only records from this forum")
	f.StringVar(&filter.MatchedKeyword, "keyword", "", "only records matched by this keyword")
	f.StringVar(&source, "source", "", "only posts or only replies")
	f.StringVar(&filter.RunID, "run-id", "", "only rows of this run (database targets)")
	f.DurationVar(&since, "since", 0, "only records created within this window")
	return cmd
}
