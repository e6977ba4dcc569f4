package ingest

import (
	"context"
	"strings"
	"time"

	"log/slog"

	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
	"github.com/mimsguild/gatekeeper/gatekeeper/database/repositories"
)

// Upstream trigger constants, matched bit-exact against the third-party
// bot's messages.
const (
	TitleAutoSummon   = "Automatic Summon!"
	TitleManualSummon = "Manual Summon"
	claimMarker       = "made by"
	claimBody         = "Claimed and added to inventory!"
)

// EmbedField is one name/value pair of the upstream embed.
type EmbedField struct {
	Name  string
	Value string
}

// UpstreamMessage is the gateway-event material the orchestrator consumes.
// The upstream bot announces a summon and then edits the same embed into the
// claimed card, so the summon kind lives in the pre-edit title while the card
// grammar lives in the post-edit one. SummonTitle carries the embed title as
// it stood before this delivery's edit; on a create delivery it equals Title.
type UpstreamMessage struct {
	AuthorID    string
	GuildID     string
	Content     string
	SummonTitle string
	Title       string
	Fields      []EmbedField
	ImageURL    string
	Timestamp   time.Time
}

// Config identifies the upstream bot and the one guild whose gate settings
// can suppress tracking.
type Config struct {
	UpstreamBotID string
	GateGuildID   string
}

// Orchestrator drives the claim-ingestion pipeline: settings gate → parse →
// resolve → dedup → conditional ledger writes. Every failure is logged and
// dropped; one bad message never affects the next.
type Orchestrator struct {
	cfg      Config
	players  repositories.PlayerRepository
	servers  repositories.ServerRepository
	gate     repositories.GateRepository
	resolver UserResolver
	dedup    *DedupFilter
}

func NewOrchestrator(
	cfg Config,
	players repositories.PlayerRepository,
	servers repositories.ServerRepository,
	gate repositories.GateRepository,
	resolver UserResolver,
	dedup *DedupFilter,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		players:  players,
		servers:  servers,
		gate:     gate,
		resolver: resolver,
		dedup:    dedup,
	}
}

// HandleMessage ingests one upstream message. Both the create and the edit
// listener funnel here, which is why the pipeline has to tolerate the same
// logical event arriving more than once.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg UpstreamMessage) {
	if msg.AuthorID != o.cfg.UpstreamBotID || msg.GuildID == "" || msg.SummonTitle == "" {
		return
	}

	isAuto := strings.Contains(msg.SummonTitle, TitleAutoSummon)
	isManual := !isAuto && strings.Contains(msg.SummonTitle, TitleManualSummon)
	if !isAuto && !isManual {
		return
	}

	settings, err := o.ensureSettings(ctx, msg.GuildID)
	if err != nil {
		slog.Error("Failed to load server settings",
			slog.String("type", "sys"),
			slog.String("server_id", msg.GuildID),
			slog.Any("error", err))
		return
	}

	if isAuto && !settings.Settings.Handlers.Claim {
		return
	}
	if isManual && !settings.Settings.Handlers.ManualClaim {
		return
	}
	if msg.Content != claimBody {
		return
	}

	for _, field := range msg.Fields {
		if !strings.Contains(field.Value, claimMarker) {
			continue
		}
		o.handleClaim(ctx, msg, field, isManual)
	}
}

func (o *Orchestrator) ensureSettings(ctx context.Context, serverID string) (*models.ServerSettings, error) {
	if err := o.servers.CreateServer(ctx, serverID); err != nil {
		return nil, err
	}
	settings, err := o.servers.GetServerSettings(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings, err = o.servers.CreateServerSettings(ctx, serverID)
		if err != nil {
			return nil, err
		}
	}
	return settings, nil
}

func (o *Orchestrator) handleClaim(ctx context.Context, msg UpstreamMessage, field EmbedField, manual bool) {
	claim, ok := ParseClaim(EmbedClaim{
		Title:      msg.Title,
		FieldName:  field.Name,
		FieldValue: field.Value,
		ImageURL:   msg.ImageURL,
		Timestamp:  msg.Timestamp,
	})
	if !ok {
		return
	}
	claim.ServerID = msg.GuildID

	userID, err := o.resolver.ResolveUsername(ctx, claim.Owner)
	if err != nil {
		slog.Error("Display-name resolution failed",
			slog.String("type", "sys"),
			slog.String("owner", claim.Owner),
			slog.Any("error", err))
		return
	}
	if userID == "" {
		// Preserved upstream behavior: the claim proceeds with an empty
		// user id rather than being dropped.
		slog.Warn("No member matched claim owner",
			slog.String("type", "sys"),
			slog.String("owner", claim.Owner),
			slog.String("server_id", msg.GuildID))
	}
	claim.UserID = userID

	if o.dedup.Seen(claim.DedupKey()) {
		slog.Debug("Skipping recently processed claim",
			slog.String("type", "sys"),
			slog.String("key", claim.DedupKey()))
		return
	}

	if err := o.players.CreatePlayer(ctx, userID, msg.GuildID); err != nil {
		slog.Error("Failed to ensure player",
			slog.String("type", "db"),
			slog.String("user_id", userID),
			slog.Any("error", err))
		return
	}

	if !o.trackingEnabled(ctx, msg.GuildID) {
		return
	}

	if manual {
		o.record(ctx, "manual claim", func() (bool, error) {
			return o.players.AddManualClaim(ctx, msg.GuildID, userID, claim)
		})
		return
	}
	o.record(ctx, "claim", func() (bool, error) {
		return o.players.AddClaim(ctx, msg.GuildID, userID, claim)
	})
	o.record(ctx, "server claim", func() (bool, error) {
		return o.servers.AddServerClaim(ctx, msg.GuildID, claim)
	})
}

// trackingEnabled checks the gate guild's cardTrackingEnabled switch; every
// other guild always tracks. A missing gate server document means tracking
// stays on.
func (o *Orchestrator) trackingEnabled(ctx context.Context, serverID string) bool {
	if serverID != o.cfg.GateGuildID {
		return true
	}
	server, err := o.gate.GetServer(ctx, serverID)
	if err != nil {
		slog.Error("Failed to load gate server",
			slog.String("type", "db"),
			slog.String("server_id", serverID),
			slog.Any("error", err))
		return false
	}
	return server == nil || server.CardTrackingEnabled
}

func (o *Orchestrator) record(ctx context.Context, kind string, write func() (bool, error)) {
	updated, err := write()
	if err != nil {
		slog.Error("Failed to record "+kind,
			slog.String("type", "db"),
			slog.Any("error", err))
		return
	}
	if !updated {
		slog.Debug("Duplicate "+kind+" suppressed by ledger", slog.String("type", "db"))
	}
}
