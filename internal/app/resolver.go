package app

import (
	"context"

	"nftlens/clients/browser"

	"go.uber.org/zap"
)

// PageCapturer captures a tab's current location and rendered HTML.
// browser.Client implements this; tests use a mock.
type PageCapturer interface {
	CapturePage(ctx context.Context, tabID string) (location string, html string, err error)
}

// Resolver extracts an NFT identity for a tab: URL matcher first, page
// content scan as fallback. The page scan never runs when the URL matcher
// succeeds.
type Resolver struct {
	logger *zap.Logger
	pages  PageCapturer
}

// NewResolver creates a new Resolver.
func NewResolver(logger *zap.Logger, pages PageCapturer) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		logger: logger.Named("resolver"),
		pages:  pages,
	}
}

// Resolve returns the tab's NFT identity, or nil when the tab is not an NFT
// page. Capture refusal (restricted page, detached tab) is not an error; it
// resolves to nil.
func (r *Resolver) Resolve(ctx context.Context, tab browser.Tab) *NFTIdentity {
	if id := MatchURL(tab.URL); id != nil {
		return id
	}

	if r.pages == nil {
		return nil
	}

	location, html, err := r.pages.CapturePage(ctx, tab.ID)
	if err != nil {
		r.logger.Debug("page capture refused",
			zap.String("tab", tab.ID),
			zap.String("url", tab.URL),
			zap.Error(err),
		)
		return nil
	}

	return ScanPage(location, html)
}
