package annotator

// Selectors locate the parts of a forge page bugson reads or anchors to.
type Selectors struct {
	// Observed is the element the forge replaces on in-app navigation.
	Observed string

	PRHeader string
	PRTitle  string
	PRNumber string

	// CommitMessages matches every commit summary and description on a
	// comparison page.
	CommitMessages string
	CommitsBucket  string

	MergedState string
	MergeAuthor string
	MergeCommit string
}

// DefaultSelectors matches GitHub's pull request and compare markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Observed:       "#js-repo-pjax-container",
		PRHeader:       "div.gh-header-show",
		PRTitle:        "span.js-issue-title",
		PRNumber:       "span.gh-header-number",
		CommitMessages: "a.message, div.commit-desc pre",
		CommitsBucket:  "#commits_bucket",
		MergedState:    "div.gh-header-show span.State--merged",
		MergeAuthor:    ".js-merge-event a.author",
		MergeCommit:    `.js-merge-event a[href*="/commit/"]`,
	}
}

// withDefaults fills empty fields from DefaultSelectors.
func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&s.Observed, d.Observed)
	fill(&s.PRHeader, d.PRHeader)
	fill(&s.PRTitle, d.PRTitle)
	fill(&s.PRNumber, d.PRNumber)
	fill(&s.CommitMessages, d.CommitMessages)
	fill(&s.CommitsBucket, d.CommitsBucket)
	fill(&s.MergedState, d.MergedState)
	fill(&s.MergeAuthor, d.MergeAuthor)
	fill(&s.MergeCommit, d.MergeCommit)
	return s
}
