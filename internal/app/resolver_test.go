package app

import (
	"context"
	"errors"
	"testing"

	"nftlens/clients/browser"
)

func TestResolver_URLMatchSkipsCapture(t *testing.T) {
	pages := &mockCapturer{}
	r := NewResolver(nil, pages)

	id := r.Resolve(context.Background(), browser.Tab{
		ID:  "t1",
		URL: "https://opensea.io/item/ethereum/0xabc/42",
	})

	if id == nil {
		t.Fatal("expected identity")
	}
	if id.Source != SourceURLItem {
		t.Errorf("unexpected source: %s", id.Source)
	}
	if pages.calls != 0 {
		t.Errorf("expected no page capture, got %d calls", pages.calls)
	}
}

func TestResolver_FallsBackToPageScan(t *testing.T) {
	pages := &mockCapturer{
		location: "https://opensea.io/somewhere",
		html:     `<html><script type="application/ld+json">{"offers":{"itemOffered":{"identifier":"0xABC/42"}}}</script></html>`,
	}
	r := NewResolver(nil, pages)

	id := r.Resolve(context.Background(), browser.Tab{
		ID:  "t1",
		URL: "https://opensea.io/rankings",
	})

	if id == nil {
		t.Fatal("expected identity from page scan")
	}
	if id.Source != SourcePageJSONLD {
		t.Errorf("unexpected source: %s", id.Source)
	}
	if pages.calls != 1 {
		t.Errorf("expected one capture, got %d", pages.calls)
	}
}

func TestResolver_CaptureRefusedResolvesNil(t *testing.T) {
	pages := &mockCapturer{err: errors.New("target detached")}
	r := NewResolver(nil, pages)

	id := r.Resolve(context.Background(), browser.Tab{
		ID:  "t1",
		URL: "https://opensea.io/rankings",
	})

	if id != nil {
		t.Errorf("expected nil, got %+v", id)
	}
}

func TestResolver_NilCapturer(t *testing.T) {
	r := NewResolver(nil, nil)

	if id := r.Resolve(context.Background(), browser.Tab{URL: "https://opensea.io/rankings"}); id != nil {
		t.Errorf("expected nil, got %+v", id)
	}
}
