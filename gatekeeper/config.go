package gatekeeper

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/disgoorg/snowflake/v2"
	"github.com/pelletier/go-toml/v2"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log     LogConfig     `toml:"log"`
	Bot     BotConfig     `toml:"bot"`
	DB      DBConfig      `toml:"db"`
	Ingest  IngestConfig  `toml:"ingest"`
	Gate    GateConfig    `toml:"gate"`
	Catalog CatalogConfig `toml:"catalog"`
}

type BotConfig struct {
	DevGuilds []snowflake.ID `toml:"dev_guilds"`
	Token     string         `toml:"token"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type DBConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

// IngestConfig identifies the upstream card bot whose embeds feed the claim
// pipeline.
type IngestConfig struct {
	UpstreamBotID string `toml:"upstream_bot_id"`
}

// GateConfig scopes the virtual-economy features to one home guild and
// names the privileged users and roles.
type GateConfig struct {
	GuildID         string         `toml:"guild_id"`
	GiveawayChannel snowflake.ID   `toml:"giveaway_channel"`
	Leads           []string       `toml:"leads"`
	PremiumRole     snowflake.ID   `toml:"premium_role"`
	BoosterRoles    []snowflake.ID `toml:"booster_roles"`
	ClanRoles       []snowflake.ID `toml:"clan_roles"`
	FirstEntryFree  bool           `toml:"first_entry_free"`
}

type CatalogConfig struct {
	BaseURL string `toml:"base_url"`
}
