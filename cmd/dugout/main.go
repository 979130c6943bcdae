// Command dugout collects Reddit posts and comments that mention MLB teams,
// merges batch outputs, and summarizes the resulting datasets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FranksOps/dugout/internal/config"
)

// cfgFile holds the path to the optional YAML configuration file.
var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dugout",
		Short:         "Collect MLB team mentions from Reddit",
		Long:          `Collects Reddit posts and comments mentioning MLB teams into deduplicated tabular datasets.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (flags and DUGOUT_* env vars override it)")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")

	root.AddCommand(newCollectCmd())
	root.AddCommand(newMergeCmd())
	root.AddCommand(newReportCmd())
	return root
}

// loadViper builds the settings for cmd: defaults, then the config file,
// then the environment, then any flag set on the command line.
func loadViper(cmd *cobra.Command, flagKeys map[string]string) (*viper.Viper, error) {
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return nil, err
	}

	keys := map[string]string{
		"log-level":  "log.level",
		"log-format": "log.format",
	}
	for name, key := range flagKeys {
		keys[name] = key
	}
	for name, key := range keys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return v, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
