package browser

import (
	"testing"

	"nftlens/config"

	"github.com/chromedp/cdproto/target"
)

func TestNewClient(t *testing.T) {
	cfg := config.Defaults()
	client := NewClient(nil, cfg)

	if client.logger == nil {
		t.Error("expected logger to be set")
	}
	if client.debugURL != cfg.Browser.DebugURL {
		t.Errorf("unexpected debug URL: %s", client.debugURL)
	}
	if cap(client.events) != cfg.Browser.EventBuffer {
		t.Errorf("unexpected event buffer: %d", cap(client.events))
	}
}

func TestIsPanelPage(t *testing.T) {
	tests := []struct {
		name string
		info *target.Info
		want bool
	}{
		{"nil", nil, false},
		{"ordinary page", &target.Info{Type: "page", URL: "https://opensea.io/collection/x"}, true},
		{"service worker", &target.Info{Type: "service_worker", URL: "https://opensea.io/sw.js"}, false},
		{"devtools", &target.Info{Type: "page", URL: "devtools://devtools/bundled/inspector.html"}, false},
		{"chrome internal", &target.Info{Type: "page", URL: "chrome://newtab/"}, false},
		{"extension", &target.Info{Type: "page", URL: "chrome-extension://abcdef/panel.html"}, false},
		{"blank", &target.Info{Type: "page", URL: "about:blank"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPanelPage(tt.info); got != tt.want {
				t.Errorf("isPanelPage(%v) = %v, want %v", tt.info, got, tt.want)
			}
		})
	}
}

func TestPickActivePage_PrefersActiveID(t *testing.T) {
	infos := []*target.Info{
		{TargetID: "a", Type: "page", URL: "https://example.com"},
		{TargetID: "b", Type: "page", URL: "https://opensea.io/item/ethereum/0xabc/1"},
	}

	picked := pickActivePage(infos, "b")
	if picked == nil || picked.TargetID != "b" {
		t.Errorf("expected target b, got %v", picked)
	}
}

func TestPickActivePage_FallsBackToFirstPage(t *testing.T) {
	infos := []*target.Info{
		{TargetID: "w", Type: "service_worker", URL: "https://x.io/sw.js"},
		{TargetID: "a", Type: "page", URL: "https://example.com"},
		{TargetID: "b", Type: "page", URL: "https://opensea.io"},
	}

	picked := pickActivePage(infos, "gone")
	if picked == nil || picked.TargetID != "a" {
		t.Errorf("expected first page target, got %v", picked)
	}
}

func TestPickActivePage_NoPages(t *testing.T) {
	infos := []*target.Info{
		{TargetID: "w", Type: "service_worker", URL: "https://x.io/sw.js"},
		{TargetID: "d", Type: "page", URL: "devtools://devtools/inspector.html"},
	}

	if picked := pickActivePage(infos, ""); picked != nil {
		t.Errorf("expected nil, got %v", picked)
	}
}

func TestEmit_DropsWhenFull(t *testing.T) {
	cfg := config.Defaults()
	cfg.Browser.EventBuffer = 1
	client := NewClient(nil, cfg)

	client.emit(TabEvent{Kind: TabActivated, Tab: Tab{ID: "a"}})
	client.emit(TabEvent{Kind: TabUpdated, Tab: Tab{ID: "b"}}) // dropped, must not block

	ev := <-client.Events()
	if ev.Tab.ID != "a" {
		t.Errorf("unexpected event: %+v", ev)
	}
	select {
	case extra := <-client.Events():
		t.Errorf("expected dropped event, got %+v", extra)
	default:
	}
}
