package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"nftlens/clients/browser"

	"go.uber.org/zap"
)

// Panel message types. These names are part of the panel protocol.
const (
	MsgGetAPIKey            = "GET_API_KEY"
	MsgSetAPIKey            = "SET_API_KEY"
	MsgGetNFTDetails        = "GET_NFT_DETAILS"
	MsgPageLoaded           = "PAGE_LOADED"
	MsgURLChanged           = "URL_CHANGED"
	MsgGetCurrentTabInfo    = "GET_CURRENT_TAB_INFO"
	MsgGetCollectionMetrics = "GET_COLLECTION_METRICS"

	// MsgTabInfoUpdated is broadcast-only; the daemon pushes it whenever the
	// tab snapshot changes.
	MsgTabInfoUpdated = "TAB_INFO_UPDATED"
)

// Message is an inbound panel message.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the reply to a panel message. Error carries failures as data;
// the router never drops a request on the floor.
type Response struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Broadcaster pushes a message to every connected panel.
type Broadcaster interface {
	Broadcast(resp Response)
}

// KeyStore persists the analytics API key. *store.Store implements this.
type KeyStore interface {
	APIKey(ctx context.Context) (string, error)
	SetAPIKey(ctx context.Context, key string) error
}

// Router dispatches panel messages to their handlers. Every inbound message
// gets exactly one response; failures come back with Error set rather than
// as dropped messages.
type Router struct {
	logger    *zap.Logger
	keys      KeyStore
	cache     *TabCache
	resolver  IdentityResolver
	metrics   MetricsFetcher
	broadcast Broadcaster

	freshness  time.Duration
	windowDays int
}

// NewRouter creates a message router.
func NewRouter(logger *zap.Logger, keys KeyStore, cache *TabCache, resolver IdentityResolver, metrics MetricsFetcher, broadcast Broadcaster, freshness time.Duration, windowDays int) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		logger:     logger.Named("router"),
		keys:       keys,
		cache:      cache,
		resolver:   resolver,
		metrics:    metrics,
		broadcast:  broadcast,
		freshness:  freshness,
		windowDays: windowDays,
	}
}

// Handle processes one inbound message and returns its response.
func (r *Router) Handle(ctx context.Context, msg Message) Response {
	resp := Response{ID: msg.ID, Type: msg.Type}

	switch msg.Type {
	case MsgGetAPIKey:
		r.handleGetAPIKey(ctx, &resp)
	case MsgSetAPIKey:
		r.handleSetAPIKey(ctx, msg.Payload, &resp)
	case MsgGetNFTDetails:
		r.handleGetNFTDetails(ctx, msg.Payload, &resp)
	case MsgPageLoaded:
		r.handlePageEvent(ctx, msg.Payload, &resp, true)
	case MsgURLChanged:
		r.handlePageEvent(ctx, msg.Payload, &resp, false)
	case MsgGetCurrentTabInfo:
		r.handleGetCurrentTabInfo(ctx, &resp)
	case MsgGetCollectionMetrics:
		r.handleGetCollectionMetrics(ctx, msg.Payload, &resp)
	default:
		resp.Error = "unknown message type: " + msg.Type
	}

	return resp
}

type apiKeyPayload struct {
	APIKey string `json:"apiKey"`
}

// handleGetAPIKey replies with the stored key, empty string when unset.
func (r *Router) handleGetAPIKey(ctx context.Context, resp *Response) {
	key, err := r.keys.APIKey(ctx)
	if err != nil {
		resp.Error = "read api key: " + err.Error()
		return
	}
	resp.Payload = apiKeyPayload{APIKey: key}
}

func (r *Router) handleSetAPIKey(ctx context.Context, raw json.RawMessage, resp *Response) {
	var payload apiKeyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		resp.Error = "decode payload: " + err.Error()
		return
	}
	if strings.TrimSpace(payload.APIKey) == "" {
		resp.Error = "apiKey is required"
		return
	}
	if err := r.keys.SetAPIKey(ctx, payload.APIKey); err != nil {
		resp.Error = "save api key: " + err.Error()
		return
	}
	resp.Payload = map[string]bool{"saved": true}
}

type nftDetailsPayload struct {
	URL string `json:"url,omitempty"`
}

// handleGetNFTDetails returns the identity for an explicit URL, or the
// current tab's identity when no URL is given. A null payload means "not an
// NFT page", which is an answer, not an error.
func (r *Router) handleGetNFTDetails(ctx context.Context, raw json.RawMessage, resp *Response) {
	var payload nftDetailsPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			resp.Error = "decode payload: " + err.Error()
			return
		}
	}

	if payload.URL != "" {
		resp.Payload = MatchURL(payload.URL)
		return
	}

	info, err := r.cache.Get(ctx, r.freshness)
	if err != nil {
		if errors.Is(err, browser.ErrNoActiveTab) {
			resp.Payload = (*NFTIdentity)(nil)
			return
		}
		resp.Error = err.Error()
		return
	}
	resp.Payload = info.NFTDetails
}

type pageEventPayload struct {
	TabID string `json:"tabId,omitempty"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// handlePageEvent refreshes the snapshot for a tab the panel observed.
// PAGE_LOADED may fall back to a page content scan; URL_CHANGED only re-runs
// the URL matcher since the page may still be loading.
func (r *Router) handlePageEvent(ctx context.Context, raw json.RawMessage, resp *Response, allowPageScan bool) {
	var payload pageEventPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		resp.Error = "decode payload: " + err.Error()
		return
	}
	if payload.URL == "" {
		resp.Error = "url is required"
		return
	}

	tab := browser.Tab{ID: payload.TabID, URL: payload.URL, Title: payload.Title}

	var details *NFTIdentity
	if allowPageScan {
		details = r.resolver.Resolve(ctx, tab)
	} else {
		details = MatchURL(tab.URL)
	}

	info := r.cache.Set(tab, details)
	resp.Payload = info

	if r.broadcast != nil {
		r.broadcast.Broadcast(Response{Type: MsgTabInfoUpdated, Payload: info})
	}
}

// handleGetCurrentTabInfo answers with the cached snapshot. A missing active
// tab comes back as an error-shaped response, never a dropped reply.
func (r *Router) handleGetCurrentTabInfo(ctx context.Context, resp *Response) {
	info, err := r.cache.Get(ctx, r.freshness)
	if err != nil {
		if errors.Is(err, browser.ErrNoActiveTab) || errors.Is(err, browser.ErrNotConnected) {
			resp.Error = "no active tab"
			return
		}
		resp.Error = err.Error()
		return
	}
	resp.Payload = info
}

type metricsRequestPayload struct {
	Blockchain      string `json:"blockchain"`
	ContractAddress string `json:"contractAddress"`
	WindowDays      int    `json:"windowDays,omitempty"`
}

func (r *Router) handleGetCollectionMetrics(ctx context.Context, raw json.RawMessage, resp *Response) {
	if r.metrics == nil {
		resp.Error = "metrics not configured"
		return
	}

	var payload metricsRequestPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		resp.Error = "decode payload: " + err.Error()
		return
	}
	if payload.ContractAddress == "" {
		resp.Error = "contractAddress is required"
		return
	}
	if payload.Blockchain == "" {
		payload.Blockchain = defaultBlockchain
	}
	if payload.WindowDays <= 0 {
		payload.WindowDays = r.windowDays
	}

	points, err := r.metrics.CollectionMetrics(ctx, payload.Blockchain, payload.ContractAddress, payload.WindowDays)
	if err != nil {
		r.logger.Warn("metrics request failed",
			zap.String("contract", payload.ContractAddress),
			zap.Error(err),
		)
		resp.Error = err.Error()
		return
	}
	resp.Payload = map[string]any{"points": points}
}
