package clients

import (
	"nftlens/clients/analytics"
	"nftlens/clients/browser"
	"nftlens/clients/discord"
	"nftlens/clients/notifier"
	"nftlens/clients/telegram"
	"nftlens/config"

	"go.uber.org/zap"
)

type Clients struct {
	Logger *zap.Logger

	Browser   *browser.Client
	Analytics *analytics.Client
	Discord   *discord.DiscordClient
	Telegram  *telegram.TelegramClient
	Notifier  notifier.Notifier // Combined notifier for all channels
}

func NewClients(logger *zap.Logger, cfg *config.Config, keys analytics.KeySource) *Clients {
	discordClient := discord.NewDiscordClient(logger, cfg)
	telegramClient := telegram.NewTelegramClient(logger, cfg)

	// Create combined notifier for all channels
	multiNotifier := notifier.NewMultiNotifier(discordClient, telegramClient)

	return &Clients{
		Logger:    logger,
		Browser:   browser.NewClient(logger, cfg),
		Analytics: analytics.NewClient(logger, cfg, keys),
		Discord:   discordClient,
		Telegram:  telegramClient,
		Notifier:  multiNotifier,
	}
}
