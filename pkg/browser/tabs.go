package browser

import (
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/bugson/pkg/automator"
)

// tab is the session's record of one page.
type tab struct {
	id       int
	page     playwright.Page
	openerID int
	active   bool
}

// tabSet is the ordered tab strip of one window. Order is the tab index.
type tabSet struct {
	mu     sync.Mutex
	tabs   []*tab
	nextID int
}

// track returns the record for page, adding it at the end of the strip if
// it is new.
func (s *tabSet) track(page playwright.Page) *tab {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t := s.find(page); t != nil {
		return t
	}
	s.nextID++
	t := &tab{id: s.nextID, page: page}
	s.tabs = append(s.tabs, t)
	return t
}

// known reports whether page is already tracked.
func (s *tabSet) known(page playwright.Page) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(page) != nil
}

// place moves the tab for page to index, records its opener and optionally
// makes it the active tab.
func (s *tabSet) place(page playwright.Page, index, openerID int, active bool) automator.Tab {
	t := s.track(page)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.remove(t)
	if index < 0 || index > len(s.tabs) {
		index = len(s.tabs)
	}
	s.tabs = append(s.tabs, nil)
	copy(s.tabs[index+1:], s.tabs[index:])
	s.tabs[index] = t

	t.openerID = openerID
	if active {
		s.setActive(t)
	}
	return s.handle(t, index)
}

// activate makes the tab for page the active one.
func (s *tabSet) activate(page playwright.Page) {
	t := s.track(page)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setActive(t)
}

// forget drops the tab for page. When it was active, its opener (or the
// nearest remaining tab) becomes active, as browsers do on close.
func (s *tabSet) forget(page playwright.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.find(page)
	if t == nil {
		return
	}
	index := s.remove(t)
	if !t.active || len(s.tabs) == 0 {
		return
	}
	for _, other := range s.tabs {
		if other.id == t.openerID {
			other.active = true
			return
		}
	}
	if index >= len(s.tabs) {
		index = len(s.tabs) - 1
	}
	s.tabs[index].active = true
}

// list returns handles for every tab in strip order.
func (s *tabSet) list() []automator.Tab {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]automator.Tab, 0, len(s.tabs))
	for i, t := range s.tabs {
		out = append(out, s.handle(t, i))
	}
	return out
}

// page returns the page behind a tab id.
func (s *tabSet) page(id int) (playwright.Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tabs {
		if t.id == id {
			return t.page, true
		}
	}
	return nil, false
}

func (s *tabSet) pages() []playwright.Page {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]playwright.Page, 0, len(s.tabs))
	for _, t := range s.tabs {
		out = append(out, t.page)
	}
	return out
}

func (s *tabSet) find(page playwright.Page) *tab {
	for _, t := range s.tabs {
		if t.page == page {
			return t
		}
	}
	return nil
}

func (s *tabSet) remove(t *tab) int {
	for i, other := range s.tabs {
		if other == t {
			s.tabs = append(s.tabs[:i], s.tabs[i+1:]...)
			return i
		}
	}
	return -1
}

func (s *tabSet) setActive(t *tab) {
	for _, other := range s.tabs {
		other.active = other == t
	}
}

func (s *tabSet) handle(t *tab, index int) automator.Tab {
	var url string
	if t.page != nil {
		url = t.page.URL()
	}
	return automator.Tab{ID: t.id, Index: index, URL: url, Active: t.active}
}
