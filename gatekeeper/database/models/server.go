package models

// Server mirrors Player's per-tier claim windows and counts vector but is
// scoped to a whole guild.
type Server struct {
	ServerID string           `bson:"serverID"`
	Counts   []int            `bson:"counts"`
	Claims   map[Tier][]Claim `bson:"claims"`
	PingUser []string         `bson:"pingUser"`
}

func NewServer(serverID string) Server {
	claims := make(map[Tier][]Claim, len(Tiers))
	for _, t := range Tiers {
		claims[t] = []Claim{}
	}
	return Server{
		ServerID: serverID,
		Counts:   make([]int, len(Tiers)),
		Claims:   claims,
		PingUser: []string{},
	}
}

// HandlerToggles are the per-server feature gates consumed by the ingestion
// orchestrator (claim, manualClaim) and the summon presentation handlers.
type HandlerToggles struct {
	Claim        bool `bson:"claim"`
	Summon       bool `bson:"summon"`
	ManualClaim  bool `bson:"manualClaim"`
	ManualSummon bool `bson:"manualSummon"`
}

// SettingsBody uses a pointer for Handlers so a document written before the
// handlers object existed can be told apart from one with every toggle off.
type SettingsBody struct {
	AllowShowStats    bool            `bson:"allowShowStats"`
	AllowRolePing     bool            `bson:"allowRolePing"`
	AllowCooldownPing bool            `bson:"allowCooldownPing"`
	Handlers          *HandlerToggles `bson:"handlers,omitempty"`
}

// ServerSettings is created lazily with defaults on first access. Documents
// written before a field existed are upgraded in place on read, so callers
// always see a fully-populated value.
type ServerSettings struct {
	ServerID string        `bson:"serverID"`
	Register bool          `bson:"register"`
	Premier  bool          `bson:"premier"`
	Settings *SettingsBody `bson:"settings,omitempty"`
	UserPing []string      `bson:"userPing"`
}

func DefaultHandlerToggles() *HandlerToggles {
	return &HandlerToggles{Claim: true, Summon: true}
}

func DefaultServerSettings(serverID string) ServerSettings {
	return ServerSettings{
		ServerID: serverID,
		Settings: &SettingsBody{
			AllowShowStats: true,
			Handlers:       DefaultHandlerToggles(),
		},
		UserPing: []string{},
	}
}

// Normalize backfills sub-fields that predate the current schema and reports
// whether the document needs to be rewritten. Existing toggle values are
// preserved; only absent objects are filled with defaults.
func (s *ServerSettings) Normalize() bool {
	changed := false
	if s.Settings == nil {
		defaults := DefaultServerSettings(s.ServerID)
		s.Settings = defaults.Settings
		changed = true
	} else if s.Settings.Handlers == nil {
		s.Settings.Handlers = DefaultHandlerToggles()
		changed = true
	}
	if s.UserPing == nil {
		s.UserPing = []string{}
		changed = true
	}
	return changed
}
