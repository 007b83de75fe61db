package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/entrhq/bugson/pkg/annotator"
	"github.com/entrhq/bugson/pkg/dom"
	"github.com/entrhq/bugson/pkg/protocol"
	"github.com/entrhq/bugson/pkg/ticket"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	ticketStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	absentStyle  = lipgloss.NewStyle().Faint(true)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

// offlineSender drops requests; a saved page has no tabs to automate.
type offlineSender struct{}

func (offlineSender) Send(protocol.Request) {}

func newScanCmd() *cobra.Command {
	var (
		pageURL  string
		emitHTML bool
	)

	cmd := &cobra.Command{
		Use:   "scan --url URL [--html] FILE",
		Short: "Annotate a saved forge page",
		Long: `Annotate a saved forge page offline.

FILE is the saved HTML of the page at --url ("-" reads stdin). By default a
summary of the rendered containers is printed; --html prints the annotated
page instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.OutOrStdout(), args[0], pageURL, emitHTML)
		},
	}

	cmd.Flags().StringVar(&pageURL, "url", "", "URL the page was saved from")
	cmd.Flags().BoolVar(&emitHTML, "html", false, "Print the annotated HTML instead of a summary")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func runScan(out io.Writer, path, pageURL string, emitHTML bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	in := io.Reader(os.Stdin)
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open page: %w", err)
		}
		defer f.Close()
		in = f
	}

	doc, err := dom.Parse(in)
	if err != nil {
		return err
	}

	a, err := newAnnotator(cfg, offlineSender{}, newLogger("scan"))
	if err != nil {
		return err
	}

	plan, _, err := a.Scan(doc, pageURL)
	if err != nil {
		return err
	}

	if emitHTML {
		rendered, err := dom.Render(doc)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, rendered)
		return err
	}

	_, err = fmt.Fprintln(out, summarize(plan))
	return err
}

// summarize renders a plan for the terminal.
func summarize(plan annotator.Plan) string {
	var b strings.Builder

	page := plan.Page
	if !page.Recognized() {
		b.WriteString(headingStyle.Render("Not a pull request or comparison page"))
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(page.URL))
		return boxStyle.Render(b.String())
	}

	title := fmt.Sprintf("%s/%s %s", page.Org, page.Repo, page.Kind)
	if page.Number != "" {
		title += " #" + page.Number
	}
	b.WriteString(headingStyle.Render(title))
	b.WriteString("\n")

	tickets := "none"
	if len(plan.Tickets) > 0 {
		tickets = ticketStyle.Render(strings.Join(ticket.Strings(plan.Tickets), ", "))
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Bugs:"), tickets)

	for _, c := range plan.Containers {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(c.ID + ":"))
		b.WriteString(" ")
		if !c.Present {
			b.WriteString(absentStyle.Render("(absent)"))
			continue
		}
		b.WriteString(containerText(c))
	}
	return boxStyle.Render(b.String())
}

// containerText is the visible text of a container, as a reader of the
// page would see it.
func containerText(c annotator.ContainerState) string {
	var b strings.Builder
	for _, n := range c.Children {
		if n.Link == nil {
			b.WriteString(n.Text)
			continue
		}
		b.WriteString(ticketStyle.Render(n.Link.Label))
	}
	return b.String()
}
