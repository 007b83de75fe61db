package annotator

import (
	"github.com/entrhq/bugson/pkg/protocol"
	"github.com/entrhq/bugson/pkg/ticket"
	"github.com/entrhq/bugson/pkg/tracker"
)

// Container ids. There is at most one container per purpose in a page.
const (
	AttachContainerID = "robBugsonAttachLinks"
	ListContainerID   = "robBugsonListLinks"
	MergeContainerID  = "robBugsonMergeLinks"

	// OpenAllLinkID identifies the aggregate link of the ticket list.
	OpenAllLinkID = "open_all_bugzilla_links"

	// ActionAttribute carries the action id of an actionable link.
	ActionAttribute = "data-bugson-action"

	// ContainerClass and LinkClass are the page's own styling classes.
	ContainerClass = "subtext"
	LinkClass      = "bugzilla_link"

	separator = ", "
)

// Placement says where a container goes relative to its anchor element.
type Placement int

const (
	// PlaceAppend makes the container the anchor's last child.
	PlaceAppend Placement = iota
	// PlaceBefore inserts the container as the anchor's previous sibling.
	PlaceBefore
)

// Anchor locates the element a container is attached to.
type Anchor struct {
	Selector  string    `json:"selector"`
	Placement Placement `json:"placement"`
}

// Link is a hyperlink widget. Links with an Action are actionable: they do
// not navigate, and clicking them sends Action across the protocol bus.
type Link struct {
	Label  string `json:"label"`
	Href   string `json:"href"`
	ID     string `json:"id,omitempty"`
	Target string `json:"target,omitempty"`

	ActionID string           `json:"action,omitempty"`
	Action   protocol.Request `json:"-"`
}

// Node is a container child: a link, or a text node when Link is nil.
type Node struct {
	Text string `json:"text,omitempty"`
	Link *Link  `json:"link,omitempty"`
}

// ContainerState is the complete desired content of one container. A state
// that is not Present means the container must not exist in the page.
type ContainerState struct {
	ID       string `json:"id"`
	Present  bool   `json:"present"`
	Anchor   Anchor `json:"anchor"`
	Children []Node `json:"children"`
}

// Absent is the state of a container that must be removed.
func Absent(id string) ContainerState {
	return ContainerState{ID: id}
}

// PullRequest is the pull request shown on a page.
type PullRequest struct {
	URL    string
	Org    string
	Repo   string
	Number string
	Title  string
}

// MergeEvent is the merge recorded on a merged pull request page.
type MergeEvent struct {
	Author    string
	AuthorURL string
	CommitSHA string
	CommitURL string
}

// Renderer turns ticket ids into container states. It never touches a page.
type Renderer struct {
	tracker *tracker.Tracker
}

// NewRenderer creates a renderer linking to t.
func NewRenderer(t *tracker.Tracker) *Renderer {
	return &Renderer{tracker: t}
}

// AttachLinks renders the "Attach to bug" container for pr. With no ids the
// container is absent.
func (r *Renderer) AttachLinks(pr PullRequest, ids []ticket.ID, anchor Anchor) ContainerState {
	if len(ids) == 0 {
		return Absent(AttachContainerID)
	}

	links := make([]Node, 0, len(ids))
	for _, id := range ids {
		links = append(links, Node{Link: &Link{
			Label:    string(id),
			Href:     "#",
			ActionID: "attach:" + string(id),
			Action: protocol.AttachLink{
				AttachURL: r.tracker.AttachURL(id),
				PRURL:     pr.URL,
				PRNumber:  pr.Number,
				PRTitle:   pr.Title,
				RepoOrg:   pr.Org,
				RepoName:  pr.Repo,
			},
		}})
	}

	children := []Node{{Text: "Attach to bug: "}}
	children = append(children, separated(links)...)
	return ContainerState{ID: AttachContainerID, Present: true, Anchor: anchor, Children: children}
}

// BugList renders the "Bugs in commits" container. It is always present,
// even for an empty id set.
func (r *Renderer) BugList(ids []ticket.ID, anchor Anchor) ContainerState {
	children := []Node{
		{Text: "Bugs in commits ("},
		{Link: &Link{Label: "open all", Href: r.tracker.ListURL(ids), ID: OpenAllLinkID, Target: "_blank"}},
		{Text: "): "},
	}

	links := make([]Node, 0, len(ids))
	for _, id := range ids {
		links = append(links, Node{Link: &Link{
			Label:  string(id),
			Href:   r.tracker.ShowURL(id),
			Target: "_blank",
		}})
	}
	children = append(children, separated(links)...)

	return ContainerState{ID: ListContainerID, Present: true, Anchor: anchor, Children: children}
}

// MergeLinks renders the "Comment on bug" container of a merged pull
// request. Without a merge event or ids the container is absent.
func (r *Renderer) MergeLinks(pr PullRequest, merge *MergeEvent, ids []ticket.ID, anchor Anchor) ContainerState {
	if merge == nil || len(ids) == 0 {
		return Absent(MergeContainerID)
	}

	links := make([]Node, 0, len(ids))
	for _, id := range ids {
		links = append(links, Node{Link: &Link{
			Label:    string(id),
			Href:     "#",
			ActionID: "merge:" + string(id),
			Action: protocol.MergeComment{
				BugURL:    r.tracker.ShowURL(id),
				Author:    merge.Author,
				AuthorURL: merge.AuthorURL,
				RepoOrg:   pr.Org,
				RepoName:  pr.Repo,
				PRTitle:   pr.Title,
				PRNumber:  pr.Number,
				PRURL:     pr.URL,
				CommitSHA: merge.CommitSHA,
				CommitURL: merge.CommitURL,
			},
		}})
	}

	children := []Node{{Text: "Comment on bug: "}}
	children = append(children, separated(links)...)
	return ContainerState{ID: MergeContainerID, Present: true, Anchor: anchor, Children: children}
}

// separated interleaves separator text nodes between items.
func separated(items []Node) []Node {
	out := make([]Node, 0, 2*len(items))
	for i, item := range items {
		if i > 0 {
			out = append(out, Node{Text: separator})
		}
		out = append(out, item)
	}
	return out
}
