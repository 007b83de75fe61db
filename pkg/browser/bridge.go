package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/net/html"

	"github.com/entrhq/bugson/pkg/annotator"
	"github.com/entrhq/bugson/pkg/dom"
	"github.com/entrhq/bugson/pkg/logging"
)

// Names of the functions the bridge exposes to every page of a session.
const (
	MutationBinding = "bugsonMutations"
	ActionBinding   = "bugsonAction"
)

// mutationBuffer bounds the batches waiting for the observer. Batches beyond
// it are dropped: the observer rescans the whole page anyway.
const mutationBuffer = 64

// initTemplate is evaluated in every document before its own scripts. It
// watches the observed element for child list changes and turns clicks on
// actionable links into binding calls.
var initTemplate = template.Must(template.New("init").Parse(`(() => {
  const observed = {{.Observed}};
  const watch = () => {
    const target = document.querySelector(observed);
    if (!target) {
      return;
    }
    new MutationObserver((records) => {
      window.{{.MutationBinding}}(records.map((r) => ({ type: r.type })));
    }).observe(target, { childList: true });
  };
  if (document.readyState === "loading") {
    document.addEventListener("DOMContentLoaded", watch);
  } else {
    watch();
  }
  document.addEventListener("click", (event) => {
    const link = event.target.closest && event.target.closest("a[{{.ActionAttribute}}]");
    if (!link) {
      return;
    }
    event.preventDefault();
    window.{{.ActionBinding}}(link.getAttribute("{{.ActionAttribute}}"));
  }, true);
})();`))

// applyScript writes container states into the live document. It receives
// the states as JSON and builds every node itself, so no markup from the
// page tree is ever injected.
const applyScript = `(payload) => {
  const { containers, containerClass, linkClass, actionAttribute } = JSON.parse(payload);
  for (const c of containers) {
    const existing = document.getElementById(c.id);
    if (!c.present) {
      if (existing) existing.remove();
      continue;
    }
    const anchor = document.querySelector(c.anchor.selector);
    if (!anchor || (c.anchor.placement === 1 && !anchor.parentNode)) continue;
    const container = existing || document.createElement("p");
    container.id = c.id;
    container.className = containerClass;
    container.replaceChildren();
    for (const n of c.children || []) {
      if (!n.link) {
        container.appendChild(document.createTextNode(n.text || ""));
        continue;
      }
      const a = document.createElement("a");
      a.href = n.link.href;
      a.className = linkClass;
      if (n.link.id) a.id = n.link.id;
      if (n.link.target) a.target = n.link.target;
      if (n.link.action) a.setAttribute(actionAttribute, n.link.action);
      a.textContent = n.link.label;
      container.appendChild(a);
    }
    if (c.anchor.placement === 1) {
      anchor.parentNode.insertBefore(container, anchor);
    } else {
      anchor.appendChild(container);
    }
  }
}`

// applyPayload is the argument of applyScript.
type applyPayload struct {
	Containers      []annotator.ContainerState `json:"containers"`
	ContainerClass  string                     `json:"containerClass"`
	LinkClass       string                     `json:"linkClass"`
	ActionAttribute string                     `json:"actionAttribute"`
}

// LivePage is a forge page open in a browser tab. It implements
// annotator.Page.
type LivePage struct {
	page playwright.Page
}

// NewLivePage wraps page.
func NewLivePage(page playwright.Page) *LivePage {
	return &LivePage{page: page}
}

// Snapshot implements annotator.Page. The tree is parsed from the page's
// serialized content and is a copy.
func (p *LivePage) Snapshot(ctx context.Context) (string, *html.Node, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	content, err := p.page.Content()
	if err != nil {
		return "", nil, fmt.Errorf("failed to read page content: %w", err)
	}
	doc, err := dom.ParseString(content)
	if err != nil {
		return "", nil, err
	}
	return p.page.URL(), doc, nil
}

// Apply implements annotator.Page.
func (p *LivePage) Apply(ctx context.Context, plan annotator.Plan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := encodeApply(plan.Containers)
	if err != nil {
		return err
	}
	if _, err := p.page.Evaluate(applyScript, payload); err != nil {
		return fmt.Errorf("failed to update page: %w", err)
	}
	return nil
}

func encodeApply(containers []annotator.ContainerState) (string, error) {
	data, err := json.Marshal(applyPayload{
		Containers:      containers,
		ContainerClass:  annotator.ContainerClass,
		LinkClass:       annotator.LinkClass,
		ActionAttribute: annotator.ActionAttribute,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode containers: %w", err)
	}
	return string(data), nil
}

// Bridge connects a session's main page to an annotator: page mutations
// become batches for the observer, and clicks on actionable links become
// annotator clicks.
type Bridge struct {
	session   *Session
	annotator *annotator.Annotator
	page      *LivePage
	batches   chan annotator.MutationBatch
	logger    *logging.Logger
}

// NewBridge creates a bridge for the session's main page.
func NewBridge(session *Session, a *annotator.Annotator, logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.Discard("bridge")
	}
	return &Bridge{
		session:   session,
		annotator: a,
		page:      NewLivePage(session.Page()),
		batches:   make(chan annotator.MutationBatch, mutationBuffer),
		logger:    logger,
	}
}

// Page returns the annotated page.
func (b *Bridge) Page() *LivePage {
	return b.page
}

// Batches returns the mutation batches reported by the page.
func (b *Bridge) Batches() <-chan annotator.MutationBatch {
	return b.batches
}

// Install exposes the bindings and registers the init script. It must run
// before the page navigates to the forge.
func (b *Bridge) Install() error {
	script, err := initScript(b.annotator.Selectors().Observed)
	if err != nil {
		return err
	}

	if err := b.session.Context.ExposeBinding(MutationBinding, b.onMutations); err != nil {
		return fmt.Errorf("failed to expose %s: %w", MutationBinding, err)
	}
	if err := b.session.Context.ExposeBinding(ActionBinding, b.onAction); err != nil {
		return fmt.Errorf("failed to expose %s: %w", ActionBinding, err)
	}
	if err := b.session.Context.AddInitScript(playwright.Script{Content: &script}); err != nil {
		return fmt.Errorf("failed to add init script: %w", err)
	}

	// A full navigation replaces the observed element, so it counts as a
	// child list change.
	b.session.Page().OnLoad(func(playwright.Page) {
		b.push(annotator.MutationBatch{{Type: annotator.MutationChildList}})
	})
	return nil
}

func (b *Bridge) onMutations(source *playwright.BindingSource, args ...interface{}) interface{} {
	if source == nil || source.Page != b.session.Page() || len(args) == 0 {
		return nil
	}
	b.push(decodeBatch(args[0]))
	return nil
}

func (b *Bridge) onAction(source *playwright.BindingSource, args ...interface{}) interface{} {
	if len(args) == 0 {
		return nil
	}
	actionID, ok := args[0].(string)
	if !ok {
		return nil
	}
	if source != nil && source.Page != nil {
		b.session.Activate(source.Page)
	}
	if err := b.annotator.Click(actionID); err != nil {
		b.logger.Warnf("click: %v", err)
	}
	return nil
}

func (b *Bridge) push(batch annotator.MutationBatch) {
	select {
	case b.batches <- batch:
	default:
		b.logger.Debugf("dropped mutation batch of %d records", len(batch))
	}
}

// decodeBatch converts the records array delivered through the binding.
func decodeBatch(arg interface{}) annotator.MutationBatch {
	records, ok := arg.([]interface{})
	if !ok {
		return nil
	}
	batch := make(annotator.MutationBatch, 0, len(records))
	for _, r := range records {
		fields, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		kind, _ := fields["type"].(string)
		batch = append(batch, annotator.MutationRecord{Type: annotator.MutationType(kind)})
	}
	return batch
}

func initScript(observed string) (string, error) {
	quoted, err := json.Marshal(observed)
	if err != nil {
		return "", fmt.Errorf("failed to quote selector: %w", err)
	}

	var sb strings.Builder
	err = initTemplate.Execute(&sb, map[string]string{
		"Observed":        string(quoted),
		"MutationBinding": MutationBinding,
		"ActionBinding":   ActionBinding,
		"ActionAttribute": annotator.ActionAttribute,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render init script: %w", err)
	}
	return sb.String(), nil
}
