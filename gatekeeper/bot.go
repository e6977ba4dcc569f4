package gatekeeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"

	"github.com/mimsguild/gatekeeper/gatekeeper/catalog"
	"github.com/mimsguild/gatekeeper/gatekeeper/database"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/repositories"
	"github.com/mimsguild/gatekeeper/gatekeeper/gate"
	"github.com/mimsguild/gatekeeper/gatekeeper/giveaway"
	"github.com/mimsguild/gatekeeper/gatekeeper/ingest"
	"github.com/mimsguild/gatekeeper/gatekeeper/wishlist"
)

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Version:   version,
		Commit:    commit,
	}
}

type Bot struct {
	Cfg       Config
	Client    bot.Client
	Paginator *paginator.Manager
	Version   string
	Commit    string

	DB                   *database.DB
	PlayerRepository     repositories.PlayerRepository
	ServerRepository     repositories.ServerRepository
	GateRepository       repositories.GateRepository
	GiveawayRepository   repositories.GiveawayRepository
	WishlistRepository   repositories.WishlistRepository
	CommandLogRepository repositories.CommandLogRepository

	Catalog         *catalog.Client
	GateService     *gate.Service
	Drops           *gate.Drops
	GiveawayManager *giveaway.Manager
	GiveawayCron    *giveaway.Scheduler
	Wishlist        *wishlist.Service
	Orchestrator    *ingest.Orchestrator
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(gateway.IntentGuilds, gateway.IntentGuildMessages, gateway.IntentMessageContent)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds, cache.FlagMembers)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	return nil
}

func (b *Bot) OnReady(_ *events.Ready) {
	slog.Info("Gatekeeper is now ready",
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Client.SetPresence(ctx,
		gateway.WithWatchingActivity("the claim feed"),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline)); err != nil {
		slog.Error("Failed to set presence", slog.Any("error", err))
	}
}
