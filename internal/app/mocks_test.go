package app

import (
	"context"
	"sync"

	"nftlens/clients/analytics"
	"nftlens/clients/browser"
	"nftlens/clients/notifier"
)

// mockCapturer implements PageCapturer with canned content.
type mockCapturer struct {
	location string
	html     string
	err      error
	calls    int
}

func (m *mockCapturer) CapturePage(_ context.Context, _ string) (string, string, error) {
	m.calls++
	if m.err != nil {
		return "", "", m.err
	}
	return m.location, m.html, nil
}

// mockTabs implements ActiveTabSource with a fixed tab or error.
type mockTabs struct {
	tab   *browser.Tab
	err   error
	calls int
}

func (m *mockTabs) ActiveTab(_ context.Context) (*browser.Tab, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.tab == nil {
		return nil, browser.ErrNoActiveTab
	}
	return m.tab, nil
}

// countingResolver implements IdentityResolver and counts invocations.
type countingResolver struct {
	identity *NFTIdentity
	calls    int
}

func (m *countingResolver) Resolve(_ context.Context, _ browser.Tab) *NFTIdentity {
	m.calls++
	return m.identity
}

// mockKeyStore implements KeyStore in memory.
type mockKeyStore struct {
	mu     sync.Mutex
	key    string
	getErr error
	setErr error
}

func (m *mockKeyStore) APIKey(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.key, nil
}

func (m *mockKeyStore) SetAPIKey(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.key = key
	return nil
}

// mockBroadcaster records every broadcast response.
type mockBroadcaster struct {
	mu        sync.Mutex
	responses []Response
}

func (m *mockBroadcaster) Broadcast(resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

func (m *mockBroadcaster) sent() []Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Response(nil), m.responses...)
}

// mockMetricsFetcher implements MetricsFetcher with canned points.
type mockMetricsFetcher struct {
	points []analytics.MetricPoint
	err    error
	calls  int

	lastBlockchain string
	lastContract   string
	lastWindow     int
}

func (m *mockMetricsFetcher) CollectionMetrics(_ context.Context, blockchain, contract string, windowDays int) ([]analytics.MetricPoint, error) {
	m.calls++
	m.lastBlockchain = blockchain
	m.lastContract = contract
	m.lastWindow = windowDays
	if m.err != nil {
		return nil, m.err
	}
	return m.points, nil
}

// mockMetricsAPI implements MetricsAPI for the metrics service tests.
type mockMetricsAPI struct {
	points  []analytics.MetricPoint
	metaErr error
	calls   int

	slugRef *analytics.CollectionRef
	slugErr error
}

func (m *mockMetricsAPI) CollectionMetrics(_ context.Context, _, _ string, _ int) ([]analytics.MetricPoint, error) {
	m.calls++
	if m.metaErr != nil {
		return nil, m.metaErr
	}
	return m.points, nil
}

func (m *mockMetricsAPI) ResolveSlug(_ context.Context, _ string) (*analytics.CollectionRef, error) {
	if m.slugErr != nil {
		return nil, m.slugErr
	}
	return m.slugRef, nil
}

// mockNotifier records metric alerts.
type mockNotifier struct {
	mu     sync.Mutex
	alerts []notifier.MetricAlert
}

func (m *mockNotifier) SendMetricAlert(alert notifier.MetricAlert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
}

func (m *mockNotifier) Close() error { return nil }

func (m *mockNotifier) sent() []notifier.MetricAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notifier.MetricAlert(nil), m.alerts...)
}
