package annotator

import (
	"context"
	"fmt"

	"golang.org/x/net/html"

	"github.com/entrhq/bugson/pkg/logging"
)

// MutationType mirrors the record types of a DOM MutationObserver.
type MutationType string

const (
	MutationChildList     MutationType = "childList"
	MutationAttributes    MutationType = "attributes"
	MutationCharacterData MutationType = "characterData"
)

// MutationRecord is one change reported by the host page.
type MutationRecord struct {
	Type MutationType `json:"type"`
}

// MutationBatch is the set of records delivered by one observer callback.
type MutationBatch []MutationRecord

// Page is a host page the observer keeps annotated.
type Page interface {
	// Snapshot returns the current URL and a tree of the page content. The
	// tree may be a copy; Apply is called with the plan scanned from it.
	Snapshot(ctx context.Context) (string, *html.Node, error)

	// Apply brings the page in line with plan after the snapshot changed.
	Apply(ctx context.Context, plan Plan) error
}

// Document is a Page held entirely in memory. Scans mutate its tree
// directly, so Apply has nothing left to do.
type Document struct {
	URL  string
	Root *html.Node
}

// Snapshot implements Page.
func (d *Document) Snapshot(ctx context.Context) (string, *html.Node, error) {
	return d.URL, d.Root, nil
}

// Apply implements Page.
func (d *Document) Apply(ctx context.Context, plan Plan) error {
	return nil
}

// Observer re-scans a page whenever its observed element reports child list
// changes. There is no debouncing: every qualifying batch triggers a full
// scan, which is cheap when nothing changed.
type Observer struct {
	annotator *Annotator
	page      Page
	logger    *logging.Logger
}

// NewObserver creates an observer for page.
func NewObserver(a *Annotator, page Page, logger *logging.Logger) *Observer {
	if logger == nil {
		logger = logging.Discard("observer")
	}
	return &Observer{annotator: a, page: page, logger: logger}
}

// Sync scans the page once and applies the plan if anything changed.
func (o *Observer) Sync(ctx context.Context) (Plan, error) {
	pageURL, doc, err := o.page.Snapshot(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to snapshot page: %w", err)
	}

	plan, changed, err := o.annotator.Scan(doc, pageURL)
	if err != nil {
		return plan, err
	}
	if !changed {
		return plan, nil
	}

	if err := o.page.Apply(ctx, plan); err != nil {
		o.annotator.Invalidate()
		return plan, fmt.Errorf("failed to apply plan: %w", err)
	}
	return plan, nil
}

// Run syncs once for the initial page, then once per batch that contains a
// child list record, until ctx is done or batches is closed. Failed syncs
// are logged and do not stop the observer.
func (o *Observer) Run(ctx context.Context, batches <-chan MutationBatch) error {
	if _, err := o.Sync(ctx); err != nil {
		o.logger.Warnf("initial scan: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			if !batch.hasChildList() {
				continue
			}
			if _, err := o.Sync(ctx); err != nil {
				o.logger.Warnf("resync: %v", err)
			}
		}
	}
}

func (b MutationBatch) hasChildList() bool {
	for _, r := range b {
		if r.Type == MutationChildList {
			return true
		}
	}
	return false
}
