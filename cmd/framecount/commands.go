package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mjf789/spam-news/internal/app"
	"github.com/mjf789/spam-news/internal/config"
	"github.com/mjf789/spam-news/internal/logging"
	"github.com/mjf789/spam-news/internal/report"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "framecount",
		Short:        "Count narrative frame exemplars by demographic group in news articles",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file (default: $FRAMECOUNT_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override logging.level")

	root.AddCommand(newRunCmd(opts), newValidateCmd(opts), newServeCmd(opts))
	return root
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

type runOptions struct {
	url      string
	output   string
	formats  []string
	strategy string
	workers  int
	database string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Process a corpus once and print the digest",
		Long: `Reads article records from JSON or JSONL files (or directories of them),
counts frame exemplars per demographic group and compares them with any
human coding present in the records. Paths override input.paths.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			opts.apply(&cfg, args)
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.RunOnce(cmd.Context())
			if rep.Run.ID != "" {
				fmt.Fprintln(cmd.OutOrStdout(), report.Digest(rep.Run, rep.Summary, rep.Skipped, rep.Agreement))
				for _, path := range rep.Outputs {
					fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
				}
			}
			if rep.Canceled() {
				return errors.New("run canceled before every article finished")
			}
			return err
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "Fetch articles from an article store URL instead of files")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Directory for CSV/JSON reports")
	cmd.Flags().StringSliceVar(&opts.formats, "format", nil, "Report formats (csv, json)")
	cmd.Flags().StringVarP(&opts.strategy, "strategy", "s", "", "Classifier strategy (lexical, model, ensemble)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Concurrent articles (default: number of CPUs)")
	cmd.Flags().StringVar(&opts.database, "db", "", "Result store DSN (SQLite path or postgres:// URL)")
	return cmd
}

func (o *runOptions) apply(cfg *config.Config, paths []string) {
	if len(paths) > 0 {
		cfg.Input.Paths = paths
		cfg.Input.URL = ""
	}
	if o.url != "" {
		cfg.Input.URL = o.url
	}
	if o.output != "" {
		cfg.Output.Dir = o.output
	}
	if len(o.formats) > 0 {
		cfg.Output.Formats = o.formats
	}
	if o.strategy != "" {
		cfg.Classifier.Strategy = o.strategy
	}
	if o.workers > 0 {
		cfg.Pipeline.Workers = o.workers
	}
	if o.database != "" {
		cfg.Database.DSN = o.database
	}
}

func newValidateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Build every component from the configuration and report errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			stages, err := app.BuildStages(cfg, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration ok: strategy %s (registered: %s)\n",
				stages.Classifier.Name(), strings.Join(stages.Strategies, ", "))
			return nil
		},
	}
}

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Re-run the corpus on pipeline.interval and serve stored results over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address for the results API")
	return cmd
}
