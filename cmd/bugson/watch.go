package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/spf13/cobra"

	"github.com/entrhq/bugson/pkg/annotator"
	"github.com/entrhq/bugson/pkg/automator"
	"github.com/entrhq/bugson/pkg/browser"
	"github.com/entrhq/bugson/pkg/logging"
	"github.com/entrhq/bugson/pkg/protocol"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch URL",
		Short: "Open a forge page in a browser and keep it annotated",
		Long: `Open URL in a Chromium window and keep its bug links up to date while
you browse. Clicking "Attach to bug" or "Comment on bug" links opens the
tracker in a new tab and fills in its form. Closing the window exits.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runWatch(ctx, args[0])
		},
	}
}

func runWatch(ctx context.Context, pageURL string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger("watch")
	defer logger.Close()
	if path := logger.LogPath(); path != "" {
		fmt.Printf("Logging to %s\n", path)
	}

	manager := browser.NewSessionManager()
	if err := manager.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	session, err := manager.StartSession("bugson", browser.SessionOptions{
		Headless: cfg.Browser.Headless,
		Viewport: &browser.Viewport{
			Width:  cfg.Browser.Viewport.Width,
			Height: cfg.Browser.Viewport.Height,
		},
		Timeout: float64(cfg.Browser.Timeout.Milliseconds()),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	session.Page().OnClose(func(playwright.Page) {
		logger.Infof("main page closed")
		cancel()
	})

	bus := protocol.NewBus(ctx, newLogger("bus"))
	automator.New(session, newLogger("automator")).Register(bus)

	a, err := newAnnotator(cfg, bus, newLogger("annotator"))
	if err != nil {
		return err
	}

	bridge := browser.NewBridge(session, a, newLogger("bridge"))
	if err := bridge.Install(); err != nil {
		return err
	}

	if err := session.Navigate(pageURL, browser.NavigateOptions{WaitUntil: "load"}); err != nil {
		return err
	}
	logger.Infof("watching %s", pageURL)
	logSessions(manager, logger)

	observer := annotator.NewObserver(a, bridge.Page(), logger)
	err = observer.Run(ctx, bridge.Batches())
	bus.Wait()

	logSessions(manager, logger)
	if closeErr := manager.CloseSession(session.Name); closeErr != nil {
		logger.Warnf("close session: %v", closeErr)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func logSessions(manager *browser.SessionManager, logger *logging.Logger) {
	for _, info := range manager.ListSessions() {
		logger.Debugf("session %s: %s, %d tabs, headless=%t, up since %s, last used %s",
			info.Name, info.CurrentURL, info.Tabs, info.Headless,
			info.CreatedAt.Format(time.RFC3339), info.LastUsedAt.Format(time.RFC3339))
	}
}
