package discord

import (
	"fmt"
	"strings"
	"time"

	"nftlens/clients/notifier"
	"nftlens/config"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordClient sends alerts to Discord.
// Implements notifier.Notifier interface.
type DiscordClient struct {
	logger    *zap.Logger
	session   *discordgo.Session
	channelID string
	isProd    bool
}

func NewDiscordClient(logger *zap.Logger, cfg *config.Config) *DiscordClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	channelID := cfg.Discord.BetaChannelID
	if cfg.IsProd {
		channelID = cfg.Discord.ProdChannelID
	}

	token := cfg.Discord.BotToken
	if token == "" {
		logger.Warn("DISCORD_BOT_TOKEN not set, Discord alerts disabled")
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
			isProd:    cfg.IsProd,
		}
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		logger.Error("failed to create discord session", zap.Error(err))
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
			isProd:    cfg.IsProd,
		}
	}

	logger.Info("discord bot initialized",
		zap.Bool("isProd", cfg.IsProd),
		zap.String("channelID", channelID),
	)

	return &DiscordClient{
		logger:    logger,
		session:   session,
		channelID: channelID,
		isProd:    cfg.IsProd,
	}
}

// IsEnabled reports whether the client has a live session.
func (dc *DiscordClient) IsEnabled() bool {
	return dc.session != nil
}

// SendMetricAlert sends a rich embedded collection metric alert.
// Implements notifier.Notifier interface.
func (dc *DiscordClient) SendMetricAlert(alert notifier.MetricAlert) {
	if dc.session == nil {
		dc.logger.Warn("discord session not initialized, skipping alert")
		return
	}

	embed := dc.buildMetricEmbed(alert)
	_, err := dc.session.ChannelMessageSendEmbed(dc.channelID, embed)
	if err != nil {
		dc.logger.Error("failed to send discord alert", zap.Error(err))
		return
	}

	dc.logger.Info("sent discord metric alert",
		zap.String("collection", alert.CollectionName),
		zap.Float64("washShare", alert.WashShare),
	)
}

// Close shuts down the Discord session.
func (dc *DiscordClient) Close() error {
	if dc.session == nil {
		return nil
	}
	return dc.session.Close()
}

// buildMetricEmbed formats a metric alert as a Discord embed.
func (dc *DiscordClient) buildMetricEmbed(alert notifier.MetricAlert) *discordgo.MessageEmbed {
	title := alert.CollectionName
	if title == "" {
		title = alert.ContractAddress
	}

	color := 0xF5A623 // amber
	if alert.WashShare >= 0.5 {
		color = 0xD0021B // red for majority-wash collections
	}

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "Window",
			Value:  fmt.Sprintf("%dd", alert.WindowDays),
			Inline: true,
		},
		{
			Name:   "Volume",
			Value:  fmt.Sprintf("%.2f ETH", alert.Volume),
			Inline: true,
		},
		{
			Name:   "Wash share",
			Value:  fmt.Sprintf("%.0f%%", alert.WashShare*100),
			Inline: true,
		},
		{
			Name:   "Sales",
			Value:  fmt.Sprintf("%d", alert.Sales),
			Inline: true,
		},
		{
			Name:   "Traders",
			Value:  fmt.Sprintf("%d", alert.Traders),
			Inline: true,
		},
		{
			Name:   "Contract",
			Value:  fmt.Sprintf("`%s` (%s)", alert.ContractAddress, alert.Blockchain),
			Inline: false,
		},
	}

	return &discordgo.MessageEmbed{
		Title:       "⚠️ " + title,
		Description: describeReasons(alert.Reasons),
		URL:         alert.MarketURL,
		Color:       color,
		Fields:      fields,
		Timestamp:   alert.Timestamp.Format(time.RFC3339),
	}
}

// describeReasons renders alert reasons as a readable line.
func describeReasons(reasons []notifier.AlertReason) string {
	if len(reasons) == 0 {
		return ""
	}
	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		switch r {
		case notifier.AlertReasonWashTrading:
			parts = append(parts, "suspected wash trading")
		case notifier.AlertReasonVolumeSpike:
			parts = append(parts, "volume spike")
		default:
			parts = append(parts, string(r))
		}
	}
	return strings.Join(parts, ", ")
}
