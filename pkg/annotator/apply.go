package annotator

import (
	"golang.org/x/net/html"

	"github.com/entrhq/bugson/pkg/dom"
)

// Apply makes doc match state. It is the only place rendering mutates a
// page tree, and applying the same state twice leaves the same tree.
//
// A present container whose anchor is missing is left alone and Apply
// reports false; that is not an error.
func Apply(doc *html.Node, state ContainerState) (bool, error) {
	container := dom.ByID(doc, state.ID)

	if !state.Present {
		if container == nil {
			return false, nil
		}
		dom.Detach(container)
		return true, nil
	}

	anchor, err := dom.QueryFirst(doc, state.Anchor.Selector)
	if err != nil {
		return false, err
	}
	if anchor == nil {
		return false, nil
	}
	if state.Anchor.Placement == PlaceBefore && anchor.Parent == nil {
		return false, nil
	}

	if container == nil {
		container = dom.Element("p", "id", state.ID, "class", ContainerClass)
	}
	dom.RemoveChildren(container)
	for _, child := range state.Children {
		container.AppendChild(buildNode(child))
	}

	dom.Detach(container)
	switch state.Anchor.Placement {
	case PlaceBefore:
		anchor.Parent.InsertBefore(container, anchor)
	default:
		anchor.AppendChild(container)
	}
	return true, nil
}

func buildNode(n Node) *html.Node {
	if n.Link == nil {
		return dom.TextNode(n.Text)
	}

	a := dom.Element("a",
		"href", n.Link.Href,
		"id", n.Link.ID,
		"target", n.Link.Target,
		"class", LinkClass,
		ActionAttribute, n.Link.ActionID,
	)
	a.AppendChild(dom.TextNode(n.Link.Label))
	return a
}
