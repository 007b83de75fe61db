// Package tracker builds links into the Bugzilla ticket tracker.
package tracker

import (
	"net/url"
	"strings"

	"github.com/entrhq/bugson/pkg/ticket"
)

// DefaultBaseURL is the tracker instance bugson targets unless configured
// otherwise.
const DefaultBaseURL = "https://bugzilla.mozilla.org"

// Tracker derives page URLs for a tracker instance.
type Tracker struct {
	baseURL string
}

// New creates a tracker rooted at baseURL. A trailing slash is ignored.
func New(baseURL string) *Tracker {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Tracker{baseURL: strings.TrimRight(baseURL, "/")}
}

// BaseURL returns the tracker root without a trailing slash.
func (t *Tracker) BaseURL() string {
	return t.baseURL
}

// AttachURL returns the "create attachment" form for a ticket.
func (t *Tracker) AttachURL(id ticket.ID) string {
	return t.baseURL + "/attachment.cgi?action=enter&bugid=" + url.QueryEscape(string(id))
}

// ShowURL returns the ticket page, which also hosts the comment form.
func (t *Tracker) ShowURL(id ticket.ID) string {
	return t.baseURL + "/show_bug.cgi?id=" + url.QueryEscape(string(id))
}

// ListURL returns a list view over ids. An empty set yields an empty list
// query.
func (t *Tracker) ListURL(ids []ticket.ID) string {
	return t.baseURL + "/buglist.cgi?bug_id=" + strings.Join(ticket.Strings(ids), ",")
}
