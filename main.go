package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"

	"github.com/mimsguild/gatekeeper/gatekeeper"
	"github.com/mimsguild/gatekeeper/gatekeeper/catalog"
	"github.com/mimsguild/gatekeeper/gatekeeper/commands"
	"github.com/mimsguild/gatekeeper/gatekeeper/database"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/repositories"
	"github.com/mimsguild/gatekeeper/gatekeeper/gate"
	"github.com/mimsguild/gatekeeper/gatekeeper/giveaway"
	"github.com/mimsguild/gatekeeper/gatekeeper/handlers"
	"github.com/mimsguild/gatekeeper/gatekeeper/ingest"
	"github.com/mimsguild/gatekeeper/gatekeeper/logger"
	"github.com/mimsguild/gatekeeper/gatekeeper/wishlist"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	slog.SetDefault(slog.New(logger.NewHandler()))

	slog.Info("Starting Gatekeeper",
		slog.String("version", version),
		slog.String("commit", commit))

	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", slog.Any("error", err))
	}

	cfg, err := gatekeeper.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	if token := os.Getenv("GATEKEEPER_TOKEN"); token != "" {
		cfg.Bot.Token = token
	}
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		cfg.DB.URI = uri
	}

	slog.Info("Initializing database connection...")
	dbStart := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.New(ctx, database.DBConfig{URI: cfg.DB.URI, Database: cfg.DB.Database})
	if err != nil {
		slog.Error("Database connection failed",
			slog.Any("error", err),
			slog.Duration("attempted_for", time.Since(dbStart)))
		os.Exit(-1)
	}

	slog.Info("Database connected",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStart)))

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	db.StartHeartbeat(runCtx)

	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := db.Close(closeCtx); err != nil {
			slog.Error("Failed to close database", slog.Any("error", err))
		}
	}()

	b := gatekeeper.New(*cfg, version, commit)
	b.DB = db

	b.PlayerRepository = repositories.NewPlayerRepository(db)
	b.ServerRepository = repositories.NewServerRepository(db)
	b.GateRepository = repositories.NewGateRepository(db)
	b.GiveawayRepository = repositories.NewGiveawayRepository(db)
	b.WishlistRepository = repositories.NewWishlistRepository(db)
	b.CommandLogRepository = repositories.NewCommandLogRepository(db)

	b.Catalog, err = catalog.NewClient(cfg.Catalog.BaseURL)
	if err != nil {
		slog.Error("Failed to build catalog client", slog.Any("error", err))
		os.Exit(-1)
	}
	b.Wishlist = wishlist.NewService(b.WishlistRepository, b.Catalog)

	dedup := ingest.NewDedupFilter()
	dedup.StartCleanupRoutine(runCtx)

	h := handler.New()

	h.Command("/gate", handlers.WrapWithLogging(b.CommandLogRepository, "gate", commands.GateHandler(b)))
	h.Component("/gate-ticket/{user}/{action}", handlers.WrapComponentWithLogging("gate-ticket", commands.GateTicketComponent(b)))
	h.Component("/gate-premium/{user}/{action}", handlers.WrapComponentWithLogging("gate-premium", commands.GatePremiumComponent(b)))
	h.Component("/gate-gift/{user}/{recipient}/{action}", handlers.WrapComponentWithLogging("gate-gift", commands.GateGiftComponent(b)))
	h.Component("/gate-nuke/{target}/{action}", handlers.WrapComponentWithLogging("gate-nuke", commands.GateNukeComponent(b)))
	h.Command("/giveaway", handlers.WrapWithLogging(b.CommandLogRepository, "giveaway", commands.GiveawayHandler(b)))
	h.Command("/wishlist", handlers.WrapWithLogging(b.CommandLogRepository, "wishlist", commands.WishlistHandler(b)))
	h.Command("/server", handlers.WrapWithLogging(b.CommandLogRepository, "server", commands.ServerHandler(b)))

	if err = b.SetupBot(h,
		bot.NewListenerFunc(b.OnReady),
		handlers.MessageHandler(b),
		handlers.MessageUpdateHandler(b),
	); err != nil {
		slog.Error("Failed to setup bot", slog.Any("error", err))
		os.Exit(-1)
	}

	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		b.Client.Close(closeCtx)
	}()

	// Client-dependent services come after SetupBot.
	b.GateService = gate.NewService(
		b.GateRepository,
		handlers.NewPremiumRoleManager(b.Client, mustGateGuildID(cfg), cfg.Gate.PremiumRole),
		cfg.Gate.Leads,
	)
	b.Drops = gate.NewDrops(
		b.GateRepository,
		handlers.NewMemberRoleChecker(b.Client, mustGateGuildID(cfg), cfg.Gate.BoosterRoles, cfg.Gate.ClanRoles),
		cfg.Gate.GuildID,
		rand.New(rand.NewSource(time.Now().UnixNano())),
		handlers.DropNotifier(b.Client),
	)
	b.GiveawayManager = giveaway.NewManager(
		b.GiveawayRepository,
		b.GateRepository,
		b.Catalog,
		handlers.NewGiveawayAnnouncer(b.Client, cfg.Gate.GiveawayChannel),
		cfg.Gate.FirstEntryFree,
	)
	b.Orchestrator = ingest.NewOrchestrator(
		ingest.Config{UpstreamBotID: cfg.Ingest.UpstreamBotID, GateGuildID: cfg.Gate.GuildID},
		b.PlayerRepository,
		b.ServerRepository,
		b.GateRepository,
		ingest.NewGuildResolver(b.Client),
		dedup,
	)

	b.GiveawayCron = giveaway.NewScheduler(b.GiveawayManager)
	if err := b.GiveawayCron.Start(); err != nil {
		slog.Error("Failed to start giveaway scheduler", slog.Any("error", err))
		os.Exit(-1)
	}
	defer b.GiveawayCron.Stop()

	if *shouldSyncCommands {
		slog.Info("Syncing commands", slog.Any("guild_ids", cfg.Bot.DevGuilds))
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands", slog.Any("error", err))
		}
	}

	gatewayCtx, gatewayCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer gatewayCancel()
	if err = b.Client.OpenGateway(gatewayCtx); err != nil {
		slog.Error("Failed to open gateway", slog.Any("error", err))
		os.Exit(-1)
	}

	slog.Info("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down bot...")
}

func mustGateGuildID(cfg *gatekeeper.Config) snowflake.ID {
	id, err := snowflake.Parse(cfg.Gate.GuildID)
	if err != nil {
		slog.Error("Invalid gate guild id", slog.String("guild_id", cfg.Gate.GuildID), slog.Any("error", err))
		os.Exit(-1)
	}
	return id
}
