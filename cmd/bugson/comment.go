package main

import (
	"fmt"
	"io"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/entrhq/bugson/pkg/automator"
	"github.com/entrhq/bugson/pkg/forge"
	"github.com/entrhq/bugson/pkg/protocol"
	"github.com/entrhq/bugson/pkg/ticket"
	"github.com/entrhq/bugson/pkg/tracker"
)

type commentOptions struct {
	bugs      []string
	prURL     string
	title     string
	author    string
	authorURL string
	sha       string
	commitURL string
	copy      bool
}

func newCommentCmd() *cobra.Command {
	var opts commentOptions

	cmd := &cobra.Command{
		Use:   "comment --bug ID --pr-url URL [flags]",
		Short: "Print the merge comment for a pull request",
		Long: `Print the Markdown comment bugson records on a bug when a pull request
merges, without opening a browser. Organisation, repository and number are
read from --pr-url.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComment(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.bugs, "bug", nil, "Bug id (repeatable)")
	cmd.Flags().StringVar(&opts.prURL, "pr-url", "", "Pull request URL")
	cmd.Flags().StringVar(&opts.title, "title", "", "Pull request title")
	cmd.Flags().StringVar(&opts.author, "author", "", "Login of the user who merged")
	cmd.Flags().StringVar(&opts.authorURL, "author-url", "", "Profile URL of the user who merged")
	cmd.Flags().StringVar(&opts.sha, "sha", "", "Merge commit SHA")
	cmd.Flags().StringVar(&opts.commitURL, "commit-url", "", "Merge commit URL")
	cmd.Flags().BoolVar(&opts.copy, "copy", false, "Copy the comment to the clipboard")
	_ = cmd.MarkFlagRequired("bug")
	_ = cmd.MarkFlagRequired("pr-url")
	return cmd
}

func runComment(out io.Writer, opts commentOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ids := ticket.ExtractAll(prefixed(opts.bugs)...)
	if len(ids) == 0 {
		return fmt.Errorf("no bug ids in %v", opts.bugs)
	}

	classifier, err := newClassifier(cfg)
	if err != nil {
		return err
	}
	page := classifier.Classify(opts.prURL)
	if page.Kind != forge.KindPullRequest {
		return fmt.Errorf("%s is not a pull request on %s", opts.prURL, classifier.Origin())
	}

	t := tracker.New(cfg.Tracker.BaseURL)
	var text string
	for _, id := range ids {
		r := protocol.MergeComment{
			BugURL:    t.ShowURL(id),
			Author:    opts.author,
			AuthorURL: opts.authorURL,
			RepoOrg:   page.Org,
			RepoName:  page.Repo,
			PRTitle:   opts.title,
			PRNumber:  page.Number,
			PRURL:     opts.prURL,
			CommitSHA: opts.sha,
			CommitURL: opts.commitURL,
		}
		text = automator.MergeCommentText(r)
		fmt.Fprintf(out, "%s\n%s\n\n", r.BugURL, text)
	}

	if opts.copy {
		if err := clipboard.WriteAll(text); err != nil {
			return fmt.Errorf("failed to copy comment: %w", err)
		}
		fmt.Fprintln(out, "Copied to clipboard.")
	}
	return nil
}

// prefixed turns bare ids into text the extractor recognizes, so "--bug
// 1234,5678" and "--bug 'bug 1234'" both work.
func prefixed(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if len(ticket.Extract(v)) > 0 {
			out = append(out, v)
			continue
		}
		out = append(out, "bug "+v)
	}
	return out
}
