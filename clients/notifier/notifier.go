package notifier

import (
	"time"
)

// AlertReason indicates why an alert was triggered.
type AlertReason string

const (
	AlertReasonWashTrading AlertReason = "wash_trading"  // Wash volume share crossed the configured threshold
	AlertReasonVolumeSpike AlertReason = "volume_spike"  // Window volume far above the collection's baseline
)

// MetricAlert contains all the data needed for a collection metric alert.
type MetricAlert struct {
	// Collection info
	CollectionName  string
	Blockchain      string
	ContractAddress string
	TokenID         string
	MarketURL       string

	// Window stats
	WindowDays int
	Volume     float64
	WashVolume float64
	WashShare  float64 // WashVolume / Volume over the window
	Sales      int
	Traders    int

	// Alert metadata
	Reasons   []AlertReason
	Timestamp time.Time
}

// Notifier is the interface for sending metric alerts to various channels.
type Notifier interface {
	// SendMetricAlert sends a collection metric alert notification.
	SendMetricAlert(alert MetricAlert)

	// Close cleans up any resources.
	Close() error
}

// MultiNotifier broadcasts alerts to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a new MultiNotifier with the given notifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	// Filter out nil notifiers
	var active []Notifier
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &MultiNotifier{notifiers: active}
}

// SendMetricAlert sends the alert to all registered notifiers.
func (m *MultiNotifier) SendMetricAlert(alert MetricAlert) {
	for _, n := range m.notifiers {
		n.SendMetricAlert(alert)
	}
}

// Close closes all registered notifiers.
func (m *MultiNotifier) Close() error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Count returns the number of active notifiers.
func (m *MultiNotifier) Count() int {
	return len(m.notifiers)
}
