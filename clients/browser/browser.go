package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"nftlens/config"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

var (
	// ErrNoActiveTab is returned when the browser has no inspectable page tab.
	ErrNoActiveTab = errors.New("no active tab")

	// ErrNotConnected is returned when the client is not attached to a browser.
	ErrNotConnected = errors.New("browser not connected")
)

// Tab describes a browser page target.
type Tab struct {
	ID    string
	URL   string
	Title string
}

// TabEventKind classifies tab lifecycle events.
type TabEventKind string

const (
	// TabActivated fires when a page target appears.
	TabActivated TabEventKind = "activated"
	// TabUpdated fires when a page target's URL or title changes.
	TabUpdated TabEventKind = "updated"
)

// TabEvent is a tab lifecycle notification.
type TabEvent struct {
	Kind TabEventKind
	Tab  Tab
}

// Tabs is the tab surface the app consumes. Client implements it; tests mock it.
type Tabs interface {
	ActiveTab(ctx context.Context) (*Tab, error)
	CapturePage(ctx context.Context, tabID string) (location string, html string, err error)
}

// Ensure Client implements Tabs.
var _ Tabs = (*Client)(nil)

// Client attaches to a running Chrome over the DevTools protocol and exposes
// tab state, tab events, and page HTML capture.
type Client struct {
	logger         *zap.Logger
	debugURL       string
	captureTimeout time.Duration

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	activeID      target.ID

	events chan TabEvent
}

// NewClient creates a new browser client. Connect must be called before use.
func NewClient(logger *zap.Logger, cfg *config.Config) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		logger:         logger.Named("browser"),
		debugURL:       cfg.Browser.DebugURL,
		captureTimeout: cfg.Browser.CaptureTimeout,
		events:         make(chan TabEvent, cfg.Browser.EventBuffer),
	}
}

// Connect dials the remote debugging endpoint and subscribes to target events.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browserCtx != nil {
		return fmt.Errorf("already connected")
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, c.debugURL)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Targets forces browser allocation without opening a tab.
	if _, err := chromedp.Targets(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("dial browser at %s: %w", c.debugURL, err)
	}

	cctx := chromedp.FromContext(browserCtx)
	if cctx.Browser == nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("dial browser at %s: no browser in context", c.debugURL)
	}

	exec := cdp.WithExecutor(browserCtx, cctx.Browser)
	if err := target.SetDiscoverTargets(true).Do(exec); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("enable target discovery: %w", err)
	}

	chromedp.ListenBrowser(browserCtx, c.handleBrowserEvent)

	c.allocCancel = allocCancel
	c.browserCtx = browserCtx
	c.browserCancel = browserCancel

	c.logger.Info("attached to browser", zap.String("debug_url", c.debugURL))
	return nil
}

// Close detaches from the browser.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browserCancel != nil {
		c.browserCancel()
		c.browserCancel = nil
	}
	if c.allocCancel != nil {
		c.allocCancel()
		c.allocCancel = nil
	}
	c.browserCtx = nil
	return nil
}

// Events returns the tab event stream. Events are dropped when the buffer
// is full; consumers re-sync through ActiveTab.
func (c *Client) Events() <-chan TabEvent {
	return c.events
}

// ActiveTab returns the current foreground page tab.
func (c *Client) ActiveTab(ctx context.Context) (*Tab, error) {
	c.mu.Lock()
	browserCtx := c.browserCtx
	activeID := c.activeID
	c.mu.Unlock()

	if browserCtx == nil {
		return nil, ErrNotConnected
	}

	infos, err := chromedp.Targets(browserCtx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}

	info := pickActivePage(infos, activeID)
	if info == nil {
		return nil, ErrNoActiveTab
	}

	return &Tab{
		ID:    string(info.TargetID),
		URL:   info.URL,
		Title: info.Title,
	}, nil
}

// CapturePage attaches to the tab and returns its current location and
// rendered HTML. Restricted pages refuse attachment and return an error.
func (c *Client) CapturePage(ctx context.Context, tabID string) (string, string, error) {
	c.mu.Lock()
	browserCtx := c.browserCtx
	c.mu.Unlock()

	if browserCtx == nil {
		return "", "", ErrNotConnected
	}

	tabCtx, cancel := chromedp.NewContext(browserCtx, chromedp.WithTargetID(target.ID(tabID)))
	defer cancel()

	runCtx, runCancel := context.WithTimeout(tabCtx, c.captureTimeout)
	defer runCancel()

	var (
		location string
		html     string
	)
	err := chromedp.Run(runCtx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", "", fmt.Errorf("capture page %s: %w", tabID, err)
	}

	return location, html, nil
}

// handleBrowserEvent translates CDP target events into tab events.
func (c *Client) handleBrowserEvent(ev any) {
	switch e := ev.(type) {
	case *target.EventTargetCreated:
		if !isPanelPage(e.TargetInfo) {
			return
		}
		c.setActive(e.TargetInfo.TargetID)
		c.emit(TabEvent{Kind: TabActivated, Tab: tabFromInfo(e.TargetInfo)})

	case *target.EventTargetInfoChanged:
		if !isPanelPage(e.TargetInfo) {
			return
		}
		c.setActive(e.TargetInfo.TargetID)
		c.emit(TabEvent{Kind: TabUpdated, Tab: tabFromInfo(e.TargetInfo)})

	case *target.EventTargetDestroyed:
		c.mu.Lock()
		if c.activeID == e.TargetID {
			c.activeID = ""
		}
		c.mu.Unlock()
	}
}

func (c *Client) setActive(id target.ID) {
	c.mu.Lock()
	c.activeID = id
	c.mu.Unlock()
}

func (c *Client) emit(ev TabEvent) {
	select {
	case c.events <- ev:
	default:
		c.logger.Debug("tab event buffer full, dropping event",
			zap.String("kind", string(ev.Kind)),
			zap.String("url", ev.Tab.URL),
		)
	}
}

func tabFromInfo(info *target.Info) Tab {
	return Tab{
		ID:    string(info.TargetID),
		URL:   info.URL,
		Title: info.Title,
	}
}

// isPanelPage reports whether a target is an ordinary web page, filtering
// out devtools, extensions and service workers.
func isPanelPage(info *target.Info) bool {
	if info == nil || info.Type != "page" {
		return false
	}
	for _, prefix := range []string{"devtools://", "chrome://", "chrome-extension://", "about:"} {
		if strings.HasPrefix(info.URL, prefix) {
			return false
		}
	}
	return true
}

// pickActivePage selects the foreground page tab: the last target that
// produced an event when still present, otherwise the first ordinary page.
func pickActivePage(infos []*target.Info, activeID target.ID) *target.Info {
	var first *target.Info
	for _, info := range infos {
		if !isPanelPage(info) {
			continue
		}
		if info.TargetID == activeID {
			return info
		}
		if first == nil {
			first = info
		}
	}
	return first
}
