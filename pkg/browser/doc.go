// Package browser hosts bugson in a real browser through Playwright.
//
// It provides the two host capabilities the rest of bugson is written
// against:
//
//   - Session implements automator.TabService. A session is one browser
//     window: its pages are the tabs, exactly one of which is active.
//   - LivePage implements annotator.Page for a forge page loaded in the
//     session, and Bridge wires the page's mutation and click events back
//     into Go.
//
// # Session Lifecycle
//
//  1. Initialize: SessionManager.Initialize installs and starts Playwright
//  2. Start: StartSession launches Chromium with a single blank tab
//  3. Use: the annotator watches the first tab; the automator opens more
//  4. Shutdown: SessionManager.Shutdown closes every session and Playwright
//
// # Example Usage
//
//	manager := browser.NewSessionManager()
//	if err := manager.Initialize(); err != nil {
//	    return err
//	}
//	defer manager.Shutdown()
//
//	session, err := manager.StartSession("forge", browser.SessionOptions{Headless: false})
//	if err != nil {
//	    return err
//	}
//	err = session.Navigate("https://github.com/mozilla/fxa/pull/4099", browser.NavigateOptions{})
package browser
