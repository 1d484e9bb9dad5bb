package app

import (
	"context"
	"sync"
	"time"

	"nftlens/clients/browser"

	"go.uber.org/zap"
)

// TabInfo is the cached snapshot of the active tab. NFTDetails is nil when
// the tab is not an NFT page.
type TabInfo struct {
	URL         string       `json:"url"`
	Title       string       `json:"title"`
	NFTDetails  *NFTIdentity `json:"nftDetails"`
	LastUpdated time.Time    `json:"lastUpdated"`
}

// Clone returns a copy of the snapshot so callers cannot mutate the cache.
func (t *TabInfo) Clone() *TabInfo {
	if t == nil {
		return nil
	}
	clone := *t
	if t.NFTDetails != nil {
		details := *t.NFTDetails
		clone.NFTDetails = &details
	}
	return &clone
}

// ActiveTabSource reports the browser's currently focused tab.
// browser.Client implements this.
type ActiveTabSource interface {
	ActiveTab(ctx context.Context) (*browser.Tab, error)
}

// IdentityResolver extracts an NFT identity for a tab, nil when the tab is
// not an NFT page. *Resolver implements this.
type IdentityResolver interface {
	Resolve(ctx context.Context, tab browser.Tab) *NFTIdentity
}

// TabCache holds the most recent active-tab snapshot and refreshes it on
// demand when it goes stale. Snapshots are swapped whole; readers never see
// a half-updated record.
type TabCache struct {
	logger   *zap.Logger
	tabs     ActiveTabSource
	resolver IdentityResolver

	// nowFn is replaceable in tests.
	nowFn func() time.Time

	mu      sync.RWMutex
	current *TabInfo
}

// NewTabCache creates an empty TabCache.
func NewTabCache(logger *zap.Logger, tabs ActiveTabSource, resolver IdentityResolver) *TabCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TabCache{
		logger:   logger.Named("tabcache"),
		tabs:     tabs,
		resolver: resolver,
		nowFn:    time.Now,
	}
}

// Get returns the current snapshot, refreshing it first when it is older
// than window. A snapshot with an empty URL never counts as fresh: new
// browser targets can fire an event before they have navigated anywhere, and
// that record is not worth serving. Returns browser.ErrNoActiveTab when a
// refresh is needed and the browser has no active tab.
func (c *TabCache) Get(ctx context.Context, window time.Duration) (*TabInfo, error) {
	now := c.nowFn()

	c.mu.RLock()
	current := c.current
	c.mu.RUnlock()

	if current != nil && current.URL != "" && now.Sub(current.LastUpdated) < window {
		return current.Clone(), nil
	}

	return c.refresh(ctx)
}

// Peek returns the current snapshot without refreshing, nil when the cache
// is empty.
func (c *TabCache) Peek() *TabInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Clone()
}

// Set replaces the snapshot for the given tab. LastUpdated is stamped here,
// never supplied by the caller, so it only moves forward.
func (c *TabCache) Set(tab browser.Tab, details *NFTIdentity) *TabInfo {
	info := &TabInfo{
		URL:         tab.URL,
		Title:       tab.Title,
		NFTDetails:  details,
		LastUpdated: c.nowFn(),
	}

	c.mu.Lock()
	c.current = info
	c.mu.Unlock()

	return info.Clone()
}

// Clear drops the snapshot, forcing the next Get to refresh.
func (c *TabCache) Clear() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

func (c *TabCache) refresh(ctx context.Context) (*TabInfo, error) {
	tab, err := c.tabs.ActiveTab(ctx)
	if err != nil {
		return nil, err
	}

	details := c.resolver.Resolve(ctx, *tab)
	info := c.Set(*tab, details)

	c.logger.Debug("tab snapshot refreshed",
		zap.String("url", info.URL),
		zap.Bool("nft", info.NFTDetails != nil),
	)
	return info, nil
}
