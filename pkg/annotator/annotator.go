// Package annotator keeps tracker links rendered into forge pages.
//
// A scan classifies the page, extracts ticket ids from its text, renders the
// desired state of every container (pure, see Renderer) and applies it to the
// page tree. Scans are idempotent, so they can be re-run on every page
// mutation without duplicating widgets.
package annotator

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/net/html"

	"github.com/entrhq/bugson/pkg/dom"
	"github.com/entrhq/bugson/pkg/forge"
	"github.com/entrhq/bugson/pkg/logging"
	"github.com/entrhq/bugson/pkg/protocol"
	"github.com/entrhq/bugson/pkg/ticket"
	"github.com/entrhq/bugson/pkg/tracker"
)

// ErrUnknownAction is returned by Click for an action id the last scan did
// not render.
var ErrUnknownAction = errors.New("unknown action")

// Sender delivers requests to the tab automator without waiting for a
// result.
type Sender interface {
	Send(r protocol.Request)
}

// Plan is the outcome of scanning one page.
type Plan struct {
	Page       forge.Page
	Tickets    []ticket.ID
	Containers []ContainerState

	// Fingerprint digests everything the containers were derived from.
	Fingerprint string
}

// Options configures an Annotator.
type Options struct {
	Classifier *forge.Classifier
	Tracker    *tracker.Tracker
	Selectors  Selectors
	Sender     Sender
	Logger     *logging.Logger
}

// Annotator scans pages and dispatches clicks on the widgets it rendered.
type Annotator struct {
	mu sync.Mutex

	classifier *forge.Classifier
	renderer   *Renderer
	selectors  Selectors
	sender     Sender
	logger     *logging.Logger

	actions     map[string]protocol.Request
	fingerprint string
}

// New creates an annotator.
func New(opts Options) (*Annotator, error) {
	if opts.Sender == nil {
		return nil, fmt.Errorf("annotator requires a sender")
	}
	if opts.Classifier == nil {
		c, err := forge.NewClassifier(forge.DefaultOrigin, nil)
		if err != nil {
			return nil, err
		}
		opts.Classifier = c
	}
	if opts.Tracker == nil {
		opts.Tracker = tracker.New(tracker.DefaultBaseURL)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard("annotator")
	}

	return &Annotator{
		classifier: opts.Classifier,
		renderer:   NewRenderer(opts.Tracker),
		selectors:  opts.Selectors.withDefaults(),
		sender:     opts.Sender,
		logger:     opts.Logger,
		actions:    make(map[string]protocol.Request),
	}, nil
}

// Selectors returns the selectors in use.
func (a *Annotator) Selectors() Selectors {
	return a.selectors
}

// Scan plans the containers for doc at pageURL and applies them to doc.
// changed is false when the page already matched the previous scan, in which
// case doc is left untouched.
func (a *Annotator) Scan(doc *html.Node, pageURL string) (plan Plan, changed bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	plan = a.plan(doc, pageURL)

	a.actions = make(map[string]protocol.Request)
	for _, c := range plan.Containers {
		for _, n := range c.Children {
			if n.Link != nil && n.Link.ActionID != "" {
				a.actions[n.Link.ActionID] = n.Link.Action
			}
		}
	}

	if plan.Fingerprint == a.fingerprint {
		return plan, false, nil
	}

	for _, c := range plan.Containers {
		if _, err := Apply(doc, c); err != nil {
			return plan, false, fmt.Errorf("failed to apply %s: %w", c.ID, err)
		}
	}
	a.fingerprint = fingerprint(doc, pageURL, plan.Containers)
	a.logger.Debugf("rendered %s page %s with %d tickets", plan.Page.Kind, pageURL, len(plan.Tickets))
	return plan, true, nil
}

// Invalidate forgets the last scan's fingerprint, so the next scan applies
// its plan even if nothing changed.
func (a *Annotator) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fingerprint = ""
}

// Click sends the request behind an actionable link.
func (a *Annotator) Click(actionID string) error {
	a.mu.Lock()
	req, ok := a.actions[actionID]
	a.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, actionID)
	}
	a.logger.Infof("click %s: sending %s", actionID, req.EventName())
	a.sender.Send(req)
	return nil
}

func (a *Annotator) plan(doc *html.Node, pageURL string) Plan {
	page := a.classifier.Classify(pageURL)
	plan := Plan{Page: page}

	switch page.Kind {
	case forge.KindPullRequest:
		pr := a.pullRequest(doc, page)
		plan.Tickets = ticket.Extract(pr.Title)
		header := Anchor{Selector: a.selectors.PRHeader, Placement: PlaceAppend}
		plan.Containers = []ContainerState{
			a.renderer.AttachLinks(pr, plan.Tickets, header),
			a.renderer.BugList(plan.Tickets, header),
			a.renderer.MergeLinks(pr, a.mergeEvent(doc, page), plan.Tickets, header),
		}
	case forge.KindCompare:
		plan.Tickets = ticket.ExtractAll(a.texts(doc, a.selectors.CommitMessages)...)
		plan.Containers = []ContainerState{
			Absent(AttachContainerID),
			a.renderer.BugList(plan.Tickets, Anchor{Selector: a.selectors.CommitsBucket, Placement: PlaceBefore}),
			Absent(MergeContainerID),
		}
	default:
		plan.Containers = []ContainerState{
			Absent(AttachContainerID),
			Absent(ListContainerID),
			Absent(MergeContainerID),
		}
	}

	plan.Fingerprint = fingerprint(doc, pageURL, plan.Containers)
	return plan
}

func (a *Annotator) pullRequest(doc *html.Node, page forge.Page) PullRequest {
	pr := PullRequest{
		URL:    page.URL,
		Org:    page.Org,
		Repo:   page.Repo,
		Number: page.Number,
		Title:  strings.TrimSpace(a.text(doc, a.selectors.PRTitle)),
	}
	if number := strings.TrimSpace(a.text(doc, a.selectors.PRNumber)); number != "" {
		pr.Number = strings.TrimPrefix(number, "#")
	}
	return pr
}

func (a *Annotator) mergeEvent(doc *html.Node, page forge.Page) *MergeEvent {
	if merged, _ := dom.QueryFirst(doc, a.selectors.MergedState); merged == nil {
		return nil
	}
	author, _ := dom.QueryFirst(doc, a.selectors.MergeAuthor)
	commit, _ := dom.QueryFirst(doc, a.selectors.MergeCommit)
	if author == nil || commit == nil {
		return nil
	}

	event := &MergeEvent{
		Author:    strings.TrimSpace(dom.Text(author)),
		AuthorURL: a.absolute(author),
		CommitURL: a.absolute(commit),
		CommitSHA: strings.TrimSpace(dom.Text(commit)),
	}
	if event.CommitSHA == "" {
		event.CommitSHA = path.Base(event.CommitURL)
	}
	return event
}

func (a *Annotator) absolute(n *html.Node) string {
	href, _ := dom.Attr(n, "href")
	base, err := url.Parse(a.classifier.Origin() + "/")
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func (a *Annotator) text(doc *html.Node, selector string) string {
	n, err := dom.QueryFirst(doc, selector)
	if err != nil {
		a.logger.Warnf("selector %q: %v", selector, err)
		return ""
	}
	return dom.Text(n)
}

func (a *Annotator) texts(doc *html.Node, selector string) []string {
	nodes, err := dom.QueryAll(doc, selector)
	if err != nil {
		a.logger.Warnf("selector %q: %v", selector, err)
		return nil
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, dom.Text(n))
	}
	return out
}

// fingerprint digests the planned containers together with whether each
// one and its anchor currently exist in doc, so a page the forge re-rendered
// is never mistaken for an unchanged one.
func fingerprint(doc *html.Node, pageURL string, containers []ContainerState) string {
	h := blake3.New()
	fmt.Fprintf(h, "%s\x00", pageURL)
	for _, c := range containers {
		anchored := false
		if c.Present {
			anchor, _ := dom.QueryFirst(doc, c.Anchor.Selector)
			anchored = anchor != nil
		}
		fmt.Fprintf(h, "%s|%t|%t|%t|%s|%d\x00", c.ID, c.Present, dom.ByID(doc, c.ID) != nil, anchored, c.Anchor.Selector, c.Anchor.Placement)
		for _, n := range c.Children {
			if n.Link == nil {
				fmt.Fprintf(h, "t:%s\x00", n.Text)
				continue
			}
			fmt.Fprintf(h, "l:%s|%s|%s|%s|%s\x00", n.Link.Label, n.Link.Href, n.Link.ID, n.Link.Target, n.Link.ActionID)
			if n.Link.Action != nil {
				if data, err := protocol.Encode(n.Link.Action); err == nil {
					h.Write(data)
				}
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
