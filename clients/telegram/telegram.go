package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"nftlens/clients/notifier"
	"nftlens/config"

	"go.uber.org/zap"
)

const telegramAPIURL = "https://api.telegram.org/bot%s/%s"

// TelegramClient sends alerts to Telegram.
// Implements notifier.Notifier interface.
type TelegramClient struct {
	logger   *zap.Logger
	botToken string
	chatID   string
	isProd   bool
	client   *http.Client
}

func NewTelegramClient(logger *zap.Logger, cfg *config.Config) *TelegramClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	chatID := cfg.Telegram.BetaChatID
	if cfg.IsProd {
		chatID = cfg.Telegram.ProdChatID
	}

	token := cfg.Telegram.BotToken
	if token == "" {
		logger.Warn("TELEGRAM_BOT_KEY not set, Telegram alerts disabled")
		return &TelegramClient{
			logger: logger,
			chatID: chatID,
			isProd: cfg.IsProd,
		}
	}

	logger.Info("telegram bot initialized",
		zap.Bool("isProd", cfg.IsProd),
		zap.String("chatID", chatID),
	)

	return &TelegramClient{
		logger:   logger,
		botToken: token,
		chatID:   chatID,
		isProd:   cfg.IsProd,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// IsEnabled reports whether the client is configured with a bot token.
func (tc *TelegramClient) IsEnabled() bool {
	return tc.botToken != ""
}

// SendMetricAlert sends a collection metric alert notification.
// Implements notifier.Notifier interface.
func (tc *TelegramClient) SendMetricAlert(alert notifier.MetricAlert) {
	if tc.botToken == "" || tc.chatID == "" {
		tc.logger.Warn("telegram not configured, skipping alert")
		return
	}

	message := tc.buildAlertMessage(alert)

	if err := tc.sendMessage(message); err != nil {
		tc.logger.Error("failed to send telegram message", zap.Error(err))
		return
	}

	tc.logger.Info("sent telegram metric alert",
		zap.String("collection", alert.CollectionName),
		zap.Float64("washShare", alert.WashShare),
	)
}

// Close implements notifier.Notifier. Nothing to release.
func (tc *TelegramClient) Close() error {
	return nil
}

// buildAlertMessage formats a metric alert as Telegram HTML.
func (tc *TelegramClient) buildAlertMessage(alert notifier.MetricAlert) string {
	var b strings.Builder

	name := alert.CollectionName
	if name == "" {
		name = alert.ContractAddress
	}

	fmt.Fprintf(&b, "⚠️ <b>%s</b>\n", escapeHTML(name))
	for _, r := range alert.Reasons {
		switch r {
		case notifier.AlertReasonWashTrading:
			b.WriteString("Suspected wash trading\n")
		case notifier.AlertReasonVolumeSpike:
			b.WriteString("Volume spike\n")
		}
	}
	fmt.Fprintf(&b, "\nWindow: %dd\n", alert.WindowDays)
	fmt.Fprintf(&b, "Volume: %.2f ETH (wash %.0f%%)\n", alert.Volume, alert.WashShare*100)
	fmt.Fprintf(&b, "Sales: %d | Traders: %d\n", alert.Sales, alert.Traders)
	fmt.Fprintf(&b, "Contract: <code>%s</code> (%s)\n", escapeHTML(alert.ContractAddress), escapeHTML(alert.Blockchain))
	if alert.MarketURL != "" {
		fmt.Fprintf(&b, "\n<a href=\"%s\">View on marketplace</a>", alert.MarketURL)
	}

	return b.String()
}

// sendMessage posts a message to the Telegram bot API.
func (tc *TelegramClient) sendMessage(text string) error {
	payload := map[string]any{
		"chat_id":                  tc.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf(telegramAPIURL, tc.botToken, "sendMessage")
	resp, err := tc.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram api status %d", resp.StatusCode)
	}

	return nil
}

// escapeHTML escapes the characters Telegram's HTML parse mode requires.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
