// Package forge recognizes the forge pages bugson annotates.
package forge

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultOrigin is the only forge bugson is tailored to.
const DefaultOrigin = "https://github.com"

// Kind classifies a forge location.
type Kind int

const (
	// KindUnknown pages get no widgets at all.
	KindUnknown Kind = iota
	// KindPullRequest is /<org>/<repo>/pull/<number>[/...].
	KindPullRequest
	// KindCompare is /<org>/<repo>/compare/<range>.
	KindCompare
)

// String returns a readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindPullRequest:
		return "pull"
	case KindCompare:
		return "compare"
	default:
		return "unknown"
	}
}

// Page describes a classified forge location.
type Page struct {
	Kind Kind
	URL  string
	Org  string
	Repo string

	// Number is the pull request number for KindPullRequest pages.
	Number string
}

// Recognized reports whether widgets should be rendered for the page.
func (p Page) Recognized() bool {
	return p.Kind != KindUnknown
}

// Classifier maps URLs to pages for one forge origin.
type Classifier struct {
	origin string
	repos  []glob.Glob
}

// NewClassifier creates a classifier for origin. repoPatterns are globs over
// "org/repo"; an empty list accepts every repository.
func NewClassifier(origin string, repoPatterns []string) (*Classifier, error) {
	if origin == "" {
		origin = DefaultOrigin
	}

	c := &Classifier{origin: strings.TrimRight(origin, "/")}
	for _, pattern := range repoPatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid repository pattern '%s': %w", pattern, err)
		}
		c.repos = append(c.repos, g)
	}
	return c, nil
}

// Origin returns the forge origin the classifier accepts.
func (c *Classifier) Origin() string {
	return c.origin
}

// Classify parses rawURL. Anything that is not a pull request or comparison
// page of an accepted repository on the forge origin is KindUnknown.
func (c *Classifier) Classify(rawURL string) Page {
	page := Page{URL: rawURL}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme+"://"+u.Host != c.origin {
		return page
	}

	segments := strings.Split(u.Path, "/")
	if len(segments) < 4 {
		return page
	}

	page.Org = segments[1]
	page.Repo = segments[2]
	if !c.acceptsRepo(page.Org + "/" + page.Repo) {
		return page
	}

	switch segments[3] {
	case "pull":
		page.Kind = KindPullRequest
		if len(segments) > 4 {
			page.Number = segments[4]
		}
	case "compare":
		page.Kind = KindCompare
	}
	return page
}

func (c *Classifier) acceptsRepo(fullName string) bool {
	if len(c.repos) == 0 {
		return true
	}
	for _, g := range c.repos {
		if g.Match(fullName) {
			return true
		}
	}
	return false
}
