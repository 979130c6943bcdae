package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FranksOps/dugout/internal/config"
	"github.com/FranksOps/dugout/internal/dedup"
	"github.com/FranksOps/dugout/internal/logger"
)

func newMergeCmd() *cobra.Command {
	var opts dedup.MergeOptions

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Combine batch outputs of several runs into one dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := loadViper(cmd, nil)
			if err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())

			res, err := dedup.Merge(cmd.Context(), opts)
			if err != nil {
				return err
			}
			for _, f := range res.Files {
				log.Info("merged batch", "file", f)
			}
			if opts.Dedup {
				log.Info("dropped duplicates", "count", res.Duplicates)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s with %d rows.\n", res.Output, res.Rows)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Dir, "dir", ".", "directory holding the batch files")
	f.StringVar(&opts.Pattern, "pattern", dedup.DefaultPattern, "glob selecting batch files inside --dir")
	f.StringVar(&opts.Output, "out", dedup.DefaultOutput, "merged file name inside --dir")
	f.BoolVar(&opts.Dedup, "dedup", true, "drop rows whose text and permalink were already seen")
	f.IntVar(&opts.Concurrency, "concurrency", 0, "files read in parallel (default GOMAXPROCS)")
	return cmd
}
