package automator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/bugson/pkg/logging"
	"github.com/entrhq/bugson/pkg/protocol"
)

type fakeTabs struct {
	tabs      []Tab
	queryErr  error
	openErr   error
	scriptErr error

	calls   []string
	opened  []OpenOptions
	scripts map[int]string
}

func (f *fakeTabs) QueryTabs(ctx context.Context) ([]Tab, error) {
	f.calls = append(f.calls, "query")
	return f.tabs, f.queryErr
}

func (f *fakeTabs) OpenTab(ctx context.Context, opts OpenOptions) (Tab, error) {
	f.calls = append(f.calls, "open")
	if f.openErr != nil {
		return Tab{}, f.openErr
	}
	f.opened = append(f.opened, opts)
	tab := Tab{ID: 100 + len(f.opened), Index: opts.Index, URL: opts.URL, Active: opts.Active}
	return tab, nil
}

func (f *fakeTabs) ExecuteScript(ctx context.Context, tab Tab, code string) error {
	f.calls = append(f.calls, "execute")
	if f.scripts == nil {
		f.scripts = make(map[int]string)
	}
	f.scripts[tab.ID] = code
	return f.scriptErr
}

func twoTabs() []Tab {
	return []Tab{
		{ID: 1, Index: 0, URL: "https://example.com"},
		{ID: 7, Index: 1, URL: "https://github.com/mozilla/fxa/pull/7", Active: true},
	}
}

func TestAutomator_AttachLink(t *testing.T) {
	tabs := &fakeTabs{tabs: twoTabs()}
	a := New(tabs, logging.Discard("automator"))

	err := a.AttachLink(context.Background(), protocol.AttachLink{
		AttachURL: "https://bugzilla.mozilla.org/attachment.cgi?action=enter&bugid=100",
		PRURL:     "https://github.com/mozilla/fxa/pull/7",
		PRNumber:  "7",
		PRTitle:   "Fixes bug: 100",
		RepoOrg:   "mozilla",
		RepoName:  "fxa",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"query", "open", "execute"}, tabs.calls)
	require.Len(t, tabs.opened, 1)
	assert.Equal(t, OpenOptions{
		URL:      "https://bugzilla.mozilla.org/attachment.cgi?action=enter&bugid=100",
		Active:   true,
		OpenerID: 7,
		Index:    2,
	}, tabs.opened[0])
	assert.Contains(t, tabs.scripts[101], "https://github.com/mozilla/fxa/pull/7")
}

func TestAutomator_MergeComment(t *testing.T) {
	tabs := &fakeTabs{tabs: twoTabs()}
	a := New(tabs, logging.Discard("automator"))

	err := a.MergeComment(context.Background(), protocol.MergeComment{
		BugURL:   "https://bugzilla.mozilla.org/show_bug.cgi?id=5",
		Author:   "octocat",
		PRNumber: "12",
	})
	require.NoError(t, err)
	require.Len(t, tabs.opened, 1)
	assert.Equal(t, "https://bugzilla.mozilla.org/show_bug.cgi?id=5", tabs.opened[0].URL)
	assert.Contains(t, tabs.scripts[101], `getElementById("comment")`)
}

func TestAutomator_NoActiveTab(t *testing.T) {
	tabs := &fakeTabs{tabs: []Tab{{ID: 1}, {ID: 2, Index: 1}}}
	a := New(tabs, logging.Discard("automator"))

	err := a.AttachLink(context.Background(), protocol.AttachLink{AttachURL: "x"})
	assert.ErrorIs(t, err, ErrNoActiveTab)
	assert.Equal(t, []string{"query"}, tabs.calls)
	assert.Empty(t, tabs.opened)
}

func TestAutomator_Failures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		tabs  *fakeTabs
		calls []string
	}{
		{name: "query fails", tabs: &fakeTabs{queryErr: boom}, calls: []string{"query"}},
		{name: "open fails", tabs: &fakeTabs{tabs: twoTabs(), openErr: boom}, calls: []string{"query", "open"}},
		{name: "missing form field", tabs: &fakeTabs{tabs: twoTabs(), scriptErr: boom}, calls: []string{"query", "open", "execute"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(tt.tabs, logging.Discard("automator"))
			err := a.MergeComment(context.Background(), protocol.MergeComment{BugURL: "x"})
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, tt.calls, tt.tabs.calls)
		})
	}
}

func TestAutomator_RegisteredOnBus(t *testing.T) {
	tabs := &fakeTabs{tabs: twoTabs()}
	a := New(tabs, logging.Discard("automator"))
	bus := protocol.NewBus(context.Background(), logging.Discard("bus"))
	a.Register(bus)

	bus.Send(protocol.AttachLink{AttachURL: "https://bugzilla.mozilla.org/attachment.cgi?action=enter&bugid=1"})
	bus.Wait()

	require.Len(t, tabs.opened, 1)
	assert.Equal(t, "https://bugzilla.mozilla.org/attachment.cgi?action=enter&bugid=1", tabs.opened[0].URL)
}

func TestAutomator_NilLoggerFallsBack(t *testing.T) {
	tabs := &fakeTabs{tabs: twoTabs()}
	a := New(tabs, nil)

	assert.NotPanics(t, func() {
		err := a.AttachLink(context.Background(), protocol.AttachLink{AttachURL: "x"})
		assert.NoError(t, err)
	})
	assert.Len(t, tabs.opened, 1)
}
