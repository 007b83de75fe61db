// Package main provides the bugson command line.
//
// bugson links GitHub pull requests to Bugzilla bugs: it annotates forge
// pages with links to the bugs their titles and commits mention, and turns
// clicks on those links into filled-in tracker forms.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entrhq/bugson/pkg/annotator"
	"github.com/entrhq/bugson/pkg/config"
	"github.com/entrhq/bugson/pkg/forge"
	"github.com/entrhq/bugson/pkg/logging"
	"github.com/entrhq/bugson/pkg/tracker"
)

const version = "0.1.0"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "bugson",
		Short:         "Link GitHub pull requests to Bugzilla bugs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default ~/.bugson/config.yaml)")

	rootCmd.AddCommand(
		newScanCmd(),
		newWatchCmd(),
		newCommentCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the bugson version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bugson v%s\n", version)
		},
	}
}

// loadConfig loads the config file and applies its logging settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logging.SetLevel(level)
	if cfg.Logging.Dir != "" {
		logging.SetDirectory(cfg.Logging.Dir)
	}
	return cfg, nil
}

// newLogger returns a file logger, or the stderr fallback with a warning.
func newLogger(component string) *logging.Logger {
	logger, err := logging.NewLogger(component)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	return logger
}

func newClassifier(cfg *config.Config) (*forge.Classifier, error) {
	classifier, err := forge.NewClassifier(cfg.Forge.Origin, cfg.Forge.Repositories)
	if err != nil {
		return nil, fmt.Errorf("invalid forge config: %w", err)
	}
	return classifier, nil
}

func newAnnotator(cfg *config.Config, sender annotator.Sender, logger *logging.Logger) (*annotator.Annotator, error) {
	classifier, err := newClassifier(cfg)
	if err != nil {
		return nil, err
	}
	return annotator.New(annotator.Options{
		Classifier: classifier,
		Tracker:    tracker.New(cfg.Tracker.BaseURL),
		Selectors:  selectors(cfg.Selectors),
		Sender:     sender,
		Logger:     logger,
	})
}

// selectors maps the config overrides onto annotator selectors. Empty
// fields fall back to the defaults inside the annotator.
func selectors(c config.SelectorConfig) annotator.Selectors {
	return annotator.Selectors{
		Observed:       c.Observed,
		PRHeader:       c.PRHeader,
		PRTitle:        c.PRTitle,
		PRNumber:       c.PRNumber,
		CommitMessages: c.CommitMessages,
		CommitsBucket:  c.CommitsBucket,
		MergedState:    c.MergedState,
		MergeAuthor:    c.MergeAuthor,
		MergeCommit:    c.MergeCommit,
	}
}
