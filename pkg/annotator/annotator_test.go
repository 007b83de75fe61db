package annotator

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"

	"github.com/entrhq/bugson/pkg/dom"
	"github.com/entrhq/bugson/pkg/forge"
	"github.com/entrhq/bugson/pkg/protocol"
)

const (
	prURL      = "https://github.com/mozilla/fxa/pull/4099"
	compareURL = "https://github.com/mozilla/fxa/compare/main...feature"
)

const comparePage = `<html><body><div id="js-repo-pjax-container">
<div class="commits-listing">
  <a class="message">bug 5</a>
  <a class="message">unrelated change</a>
  <div id="commits_bucket"></div>
</div>
</div></body></html>`

const mergedPage = `<html><body><div id="js-repo-pjax-container">
<div class="gh-header-show">
  <span class="js-issue-title">Bug 300 - Fix login</span>
  <span class="gh-header-number">#12</span>
  <span class="State State--merged">Merged</span>
</div>
<div class="TimelineItem js-merge-event">
  <a class="author" href="/octocat">octocat</a> merged commit
  <a href="/mozilla/fxa/commit/abc1234def">abc1234</a> into main
</div>
</div></body></html>`

type captureSender struct {
	mu   sync.Mutex
	sent []protocol.Request
}

func (c *captureSender) Send(r protocol.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, r)
}

func newAnnotator(t *testing.T, sender Sender) *Annotator {
	t.Helper()
	a, err := New(Options{Sender: sender})
	require.NoError(t, err)
	return a
}

func parse(t *testing.T, page string) *html.Node {
	t.Helper()
	doc, err := dom.ParseString(page)
	require.NoError(t, err)
	return doc
}

func mustAttr(t *testing.T, n *html.Node, key string) string {
	t.Helper()
	v, ok := dom.Attr(n, key)
	require.True(t, ok, "missing attribute %s", key)
	return v
}

// linkLabels returns the labels of the ticket links in a container, skipping
// the "open all" link.
func linkLabels(t *testing.T, doc *html.Node, containerID string) []string {
	t.Helper()
	container := dom.ByID(doc, containerID)
	require.NotNil(t, container, "container %s not rendered", containerID)

	links, err := dom.QueryAll(container, "a.bugzilla_link")
	require.NoError(t, err)
	var labels []string
	for _, l := range links {
		if id, _ := dom.Attr(l, "id"); id == OpenAllLinkID {
			continue
		}
		labels = append(labels, dom.Text(l))
	}
	return labels
}

func findLink(t *testing.T, doc *html.Node, containerID, label string) *html.Node {
	t.Helper()
	links, err := dom.QueryAll(dom.ByID(doc, containerID), "a")
	require.NoError(t, err)
	for _, l := range links {
		if dom.Text(l) == label {
			return l
		}
	}
	t.Fatalf("no link %q in %s", label, containerID)
	return nil
}

func TestScan_PullRequestEndToEnd(t *testing.T) {
	sender := &captureSender{}
	a := newAnnotator(t, sender)
	doc := parse(t, prPage)

	plan, changed, err := a.Scan(doc, prURL)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, forge.KindPullRequest, plan.Page.Kind)

	assert.Equal(t, []string{"100", "200"}, linkLabels(t, doc, AttachContainerID))
	assert.Equal(t, []string{"100", "200"}, linkLabels(t, doc, ListContainerID))
	assert.Nil(t, dom.ByID(doc, MergeContainerID))

	link := findLink(t, doc, AttachContainerID, "100")
	assert.Equal(t, "#", mustAttr(t, link, "href"))
	require.NoError(t, a.Click(mustAttr(t, link, ActionAttribute)))

	require.Len(t, sender.sent, 1)
	data, err := protocol.Encode(sender.sent[0])
	require.NoError(t, err)
	assert.Equal(t, "attachLink", gjson.GetBytes(data, "eventName").String())
	assert.True(t, strings.HasSuffix(gjson.GetBytes(data, "attachUrl").String(), "bugid=100"))
	assert.Equal(t, "4099", gjson.GetBytes(data, "prNum").String())
	assert.Equal(t, prURL, gjson.GetBytes(data, "prUrl").String())
	assert.Equal(t, "mozilla", gjson.GetBytes(data, "repoOrg").String())
	assert.Equal(t, "fxa", gjson.GetBytes(data, "repoName").String())
}

func TestScan_ComparisonEndToEnd(t *testing.T) {
	a := newAnnotator(t, &captureSender{})
	doc := parse(t, comparePage)

	_, _, err := a.Scan(doc, compareURL)
	require.NoError(t, err)

	assert.Equal(t, []string{"5"}, linkLabels(t, doc, ListContainerID))
	openAll := dom.ByID(doc, OpenAllLinkID)
	require.NotNil(t, openAll)
	assert.Equal(t, "https://bugzilla.mozilla.org/buglist.cgi?bug_id=5", mustAttr(t, openAll, "href"))
	assert.Nil(t, dom.ByID(doc, AttachContainerID))

	bucket := dom.ByID(doc, "commits_bucket")
	assert.Equal(t, ListContainerID, mustAttr(t, bucket.PrevSibling, "id"))
}

func TestScan_ComparisonUnionsCommitDescriptions(t *testing.T) {
	a := newAnnotator(t, &captureSender{})
	doc := parse(t, `<html><body><div id="js-repo-pjax-container">
<a class="message">Bug 1 - first</a><div class="commit-desc"><pre>Also fixes bug 2 and 1</pre></div>
<a class="message">issue 3</a><div id="commits_bucket"></div></div></body></html>`)

	plan, _, err := a.Scan(doc, compareURL)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, linkLabels(t, doc, ListContainerID))
	assert.Len(t, plan.Tickets, 3)
}

func TestScan_NoTicketsInTitle(t *testing.T) {
	a := newAnnotator(t, &captureSender{})
	doc := parse(t, strings.Replace(prPage, "Fixes bug: 100, 200", "just PR 42", 1))

	_, _, err := a.Scan(doc, prURL)
	require.NoError(t, err)

	assert.Nil(t, dom.ByID(doc, AttachContainerID))
	require.NotNil(t, dom.ByID(doc, ListContainerID))
	assert.Empty(t, linkLabels(t, doc, ListContainerID))
	assert.Equal(t, "https://bugzilla.mozilla.org/buglist.cgi?bug_id=", mustAttr(t, dom.ByID(doc, OpenAllLinkID), "href"))
}

func TestScan_Idempotent(t *testing.T) {
	a := newAnnotator(t, &captureSender{})
	doc := parse(t, prPage)

	_, changed, err := a.Scan(doc, prURL)
	require.NoError(t, err)
	require.True(t, changed)
	first, err := dom.Render(doc)
	require.NoError(t, err)

	_, changed, err = a.Scan(doc, prURL)
	require.NoError(t, err)
	assert.False(t, changed)
	second, err := dom.Render(doc)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A fresh copy of the page, as after an in-app navigation, is rendered
	// again rather than skipped.
	fresh := parse(t, prPage)
	_, changed, err = a.Scan(fresh, prURL)
	require.NoError(t, err)
	assert.True(t, changed)
	third, err := dom.Render(fresh)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestScan_UnknownPageRemovesWidgets(t *testing.T) {
	a := newAnnotator(t, &captureSender{})
	doc := parse(t, prPage)

	_, _, err := a.Scan(doc, prURL)
	require.NoError(t, err)
	require.NotNil(t, dom.ByID(doc, ListContainerID))

	plan, _, err := a.Scan(doc, "https://github.com/mozilla/fxa/issues/1")
	require.NoError(t, err)
	assert.False(t, plan.Page.Recognized())
	assert.Nil(t, dom.ByID(doc, AttachContainerID))
	assert.Nil(t, dom.ByID(doc, ListContainerID))

	err = a.Click("attach:100")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestScan_MergedPullRequest(t *testing.T) {
	sender := &captureSender{}
	a := newAnnotator(t, sender)
	doc := parse(t, mergedPage)

	_, _, err := a.Scan(doc, "https://github.com/mozilla/fxa/pull/12")
	require.NoError(t, err)

	assert.Equal(t, []string{"300"}, linkLabels(t, doc, MergeContainerID))
	link := findLink(t, doc, MergeContainerID, "300")
	require.NoError(t, a.Click(mustAttr(t, link, ActionAttribute)))

	require.Len(t, sender.sent, 1)
	req, ok := sender.sent[0].(protocol.MergeComment)
	require.True(t, ok)
	assert.Equal(t, protocol.MergeComment{
		BugURL:    "https://bugzilla.mozilla.org/show_bug.cgi?id=300",
		Author:    "octocat",
		AuthorURL: "https://github.com/octocat",
		RepoOrg:   "mozilla",
		RepoName:  "fxa",
		PRTitle:   "Bug 300 - Fix login",
		PRNumber:  "12",
		PRURL:     "https://github.com/mozilla/fxa/pull/12",
		CommitSHA: "abc1234",
		CommitURL: "https://github.com/mozilla/fxa/commit/abc1234def",
	}, req)
}

func TestNew_RequiresSender(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}
