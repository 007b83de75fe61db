// Package automator opens tracker tabs and fills their forms on behalf of
// the page annotator.
//
// It is the privileged side of the protocol: it alone holds a TabService.
// Every automation sequence is attempted once; failures are returned to the
// bus, which logs them.
package automator

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/bugson/pkg/logging"
	"github.com/entrhq/bugson/pkg/protocol"
)

// ErrNoActiveTab means the current window reported no active tab, so there
// is nothing to open the tracker tab next to.
var ErrNoActiveTab = errors.New("no active tab in the current window")

// Tab is a handle to a browser tab.
type Tab struct {
	ID     int
	Index  int
	URL    string
	Active bool
}

// OpenOptions describes a tab to create.
type OpenOptions struct {
	URL      string
	Active   bool
	OpenerID int
	Index    int
}

// TabService is the browser's tab capability.
type TabService interface {
	// QueryTabs lists the tabs of the currently focused window.
	QueryTabs(ctx context.Context) ([]Tab, error)

	// OpenTab creates a tab and returns once it can be addressed.
	OpenTab(ctx context.Context, opts OpenOptions) (Tab, error)

	// ExecuteScript runs code in the tab's page.
	ExecuteScript(ctx context.Context, tab Tab, code string) error
}

// Automator runs automation sequences against a TabService.
type Automator struct {
	tabs   TabService
	logger *logging.Logger
}

// New creates an automator.
func New(tabs TabService, logger *logging.Logger) *Automator {
	if logger == nil {
		logger = logging.Discard("automator")
	}
	return &Automator{tabs: tabs, logger: logger}
}

// Register subscribes the automator to both request variants on bus.
func (a *Automator) Register(bus *protocol.Bus) {
	bus.OnAttachLink(a.AttachLink)
	bus.OnMergeComment(a.MergeComment)
}

// AttachLink opens the tracker attachment form and fills it with the pull
// request link and a description.
func (a *Automator) AttachLink(ctx context.Context, r protocol.AttachLink) error {
	snippet, err := AttachSnippet(r)
	if err != nil {
		return err
	}
	return a.run(ctx, r.AttachURL, snippet)
}

// MergeComment opens the ticket and writes the merge comment into its
// comment box.
func (a *Automator) MergeComment(ctx context.Context, r protocol.MergeComment) error {
	snippet, err := MergeCommentSnippet(r)
	if err != nil {
		return err
	}
	return a.run(ctx, r.BugURL, snippet)
}

func (a *Automator) run(ctx context.Context, targetURL, snippet string) error {
	source, err := a.activeTab(ctx)
	if err != nil {
		return err
	}

	tab, err := a.tabs.OpenTab(ctx, OpenOptions{
		URL:      targetURL,
		Active:   true,
		OpenerID: source.ID,
		Index:    source.Index + 1,
	})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", targetURL, err)
	}
	a.logger.Debugf("opened tab %d at %s next to tab %d", tab.ID, targetURL, source.ID)

	if err := a.tabs.ExecuteScript(ctx, tab, snippet); err != nil {
		return fmt.Errorf("failed to populate tab %d: %w", tab.ID, err)
	}

	a.logger.Infof("populated %s", targetURL)
	return nil
}

func (a *Automator) activeTab(ctx context.Context) (Tab, error) {
	tabs, err := a.tabs.QueryTabs(ctx)
	if err != nil {
		return Tab{}, fmt.Errorf("failed to query tabs: %w", err)
	}
	for _, tab := range tabs {
		if tab.Active {
			return tab, nil
		}
	}
	return Tab{}, ErrNoActiveTab
}
