package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nftlens/config"
)

type staticKeys struct {
	key string
	err error
}

func (s staticKeys) APIKey(ctx context.Context) (string, error) {
	return s.key, s.err
}

func testConfig(baseURL string) *config.Config {
	cfg := config.Defaults()
	cfg.Analytics.BaseURL = baseURL
	return cfg
}

func TestNewClient(t *testing.T) {
	client := NewClient(nil, testConfig("https://api.example.com"), staticKeys{key: "k"})

	if client.logger == nil {
		t.Error("expected logger to be set")
	}
	if client.baseURL != "https://api.example.com" {
		t.Errorf("unexpected base URL: %s", client.baseURL)
	}
}

func TestCollectionMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/collections/ethereum/0xabc/metrics" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("window") != "7d" {
			t.Errorf("unexpected window: %s", r.URL.Query().Get("window"))
		}
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Errorf("unexpected api key header: %s", r.Header.Get("X-API-Key"))
		}

		resp := metricsResponse{
			Points: []MetricPoint{
				{Timestamp: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), Volume: 12.5, WashVolume: 3.0, Sales: 40, Buyers: 18, Sellers: 15},
				{Timestamp: time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC), Volume: 9.1, WashVolume: 0.5, Sales: 22, Buyers: 12, Sellers: 9},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(nil, testConfig(server.URL), staticKeys{key: "test-key"})

	points, err := client.CollectionMetrics(context.Background(), "ethereum", "0xabc", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Volume != 12.5 {
		t.Errorf("unexpected volume: %f", points[0].Volume)
	}
	if points[0].Traders() != 33 {
		t.Errorf("unexpected trader count: %d", points[0].Traders())
	}
}

func TestCollectionMetrics_NoAPIKey(t *testing.T) {
	client := NewClient(nil, testConfig("https://api.example.com"), staticKeys{key: ""})

	_, err := client.CollectionMetrics(context.Background(), "ethereum", "0xabc", 7)
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestCollectionMetrics_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(nil, testConfig(server.URL), staticKeys{key: "k"})

	if _, err := client.CollectionMetrics(context.Background(), "ethereum", "0xabc", 7); err == nil {
		t.Error("expected error on 502 response")
	}
}

func TestResolveSlug(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/collections/slug/boredapes" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(CollectionRef{
			Blockchain:      "ethereum",
			ContractAddress: "0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d",
			Slug:            "boredapes",
			Name:            "Bored Ape Yacht Club",
		})
	}))
	defer server.Close()

	client := NewClient(nil, testConfig(server.URL), staticKeys{key: "k"})

	ref, err := client.ResolveSlug(context.Background(), "boredapes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.ContractAddress != "0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d" {
		t.Errorf("unexpected contract: %s", ref.ContractAddress)
	}
}

func TestResolveSlug_EmptyContract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(CollectionRef{Slug: "ghost"})
	}))
	defer server.Close()

	client := NewClient(nil, testConfig(server.URL), staticKeys{key: "k"})

	if _, err := client.ResolveSlug(context.Background(), "ghost"); err == nil {
		t.Error("expected error for empty contract address")
	}
}
