package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimsguild/gatekeeper/gatekeeper/database/models"
)

type fakePlayerRepo struct {
	created      []string
	claims       []models.Claim
	manualClaims []models.Claim
}

func (f *fakePlayerRepo) CreatePlayer(_ context.Context, userID, serverID string) error {
	f.created = append(f.created, userID+"@"+serverID)
	return nil
}

func (f *fakePlayerRepo) AddClaim(_ context.Context, _, _ string, claim models.Claim) (bool, error) {
	f.claims = append(f.claims, claim)
	return true, nil
}

func (f *fakePlayerRepo) AddManualClaim(_ context.Context, _, _ string, claim models.Claim) (bool, error) {
	f.manualClaims = append(f.manualClaims, claim)
	return true, nil
}

func (f *fakePlayerRepo) GetPlayerData(context.Context, string, string) (*models.ServerStats, error) {
	return nil, nil
}

type fakeServerRepo struct {
	settings     models.ServerSettings
	serverClaims []models.Claim
}

func newFakeServerRepo() *fakeServerRepo {
	return &fakeServerRepo{settings: models.DefaultServerSettings("srv")}
}

func (f *fakeServerRepo) CreateServer(context.Context, string) error { return nil }

func (f *fakeServerRepo) GetServerData(context.Context, string) (*models.Server, error) {
	return nil, nil
}

func (f *fakeServerRepo) AddServerClaim(_ context.Context, _ string, claim models.Claim) (bool, error) {
	f.serverClaims = append(f.serverClaims, claim)
	return true, nil
}

func (f *fakeServerRepo) GetServerSettings(context.Context, string) (*models.ServerSettings, error) {
	s := f.settings
	return &s, nil
}

func (f *fakeServerRepo) CreateServerSettings(context.Context, string) (*models.ServerSettings, error) {
	s := f.settings
	return &s, nil
}

func (f *fakeServerRepo) ToggleRegister(context.Context, string) error { return nil }

func (f *fakeServerRepo) ToggleAllowRolePing(context.Context, string) (bool, error) {
	return false, nil
}

func (f *fakeServerRepo) ToggleAllowCooldownPing(context.Context, string) (bool, error) {
	return false, nil
}

func (f *fakeServerRepo) ToggleHandler(context.Context, string, string) (bool, error) {
	return false, nil
}

type fakeResolver struct {
	ids map[string]string
}

func (f *fakeResolver) ResolveUsername(_ context.Context, username string) (string, error) {
	return f.ids[username], nil
}

func newTestOrchestrator(players *fakePlayerRepo, servers *fakeServerRepo, resolver UserResolver) *Orchestrator {
	return NewOrchestrator(
		Config{UpstreamBotID: "upstream", GateGuildID: "gate-guild"},
		players,
		servers,
		nil,
		resolver,
		NewDedupFilter(),
	)
}

// claimMessage models the edit delivery: the summon title is the embed as
// it stood before the edit, the card title is what the edit wrote over it.
func claimMessage(summonTitle, title string) UpstreamMessage {
	return UpstreamMessage{
		AuthorID:    "upstream",
		GuildID:     "srv",
		Content:     "Claimed and added to inventory!",
		SummonTitle: summonTitle,
		Title:       title,
		Fields: []EmbedField{
			{Name: "Claimed by dresden", Value: "Card made by hazelnut"},
		},
		ImageURL:  "https://cdn.example.com/cards/card-9912/image.png",
		Timestamp: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestHandleMessageAutoClaim(t *testing.T) {
	players := &fakePlayerRepo{}
	servers := newFakeServerRepo()
	o := newTestOrchestrator(players, servers, &fakeResolver{ids: map[string]string{"dresden": "42"}})

	o.HandleMessage(context.Background(), claimMessage("Automatic Summon!", "<:SRT:1> Moonlight Haze *#3*"))

	require.Len(t, players.claims, 1)
	require.Len(t, servers.serverClaims, 1)
	assert.Empty(t, players.manualClaims)
	assert.Equal(t, []string{"42@srv"}, players.created)
	assert.Equal(t, "42", players.claims[0].UserID)
	assert.Equal(t, "srv", players.claims[0].ServerID)
}

func TestHandleMessageManualClaimSkipsServerLedger(t *testing.T) {
	players := &fakePlayerRepo{}
	servers := newFakeServerRepo()
	// Manual claims ship gated off; flip the toggle the way /server toggle would.
	servers.settings.Settings.Handlers.ManualClaim = true
	o := newTestOrchestrator(players, servers, &fakeResolver{ids: map[string]string{"dresden": "42"}})

	o.HandleMessage(context.Background(), claimMessage("Manual Summon", "<:SRT:1> Moonlight Haze *#3*"))

	require.Len(t, players.manualClaims, 1)
	assert.Empty(t, players.claims)
	assert.Empty(t, servers.serverClaims, "manual claims never touch the server ledger")
}

func TestHandleMessageIgnoresWrongAuthor(t *testing.T) {
	players := &fakePlayerRepo{}
	servers := newFakeServerRepo()
	o := newTestOrchestrator(players, servers, &fakeResolver{})

	msg := claimMessage("Automatic Summon!", "<:SRT:1> Moonlight Haze *#3*")
	msg.AuthorID = "someone-else"
	o.HandleMessage(context.Background(), msg)

	assert.Empty(t, players.claims)
	assert.Empty(t, players.created)
}

func TestHandleMessageRespectsHandlerToggle(t *testing.T) {
	players := &fakePlayerRepo{}
	servers := newFakeServerRepo()
	servers.settings.Settings.Handlers.Claim = false
	o := newTestOrchestrator(players, servers, &fakeResolver{ids: map[string]string{"dresden": "42"}})

	o.HandleMessage(context.Background(), claimMessage("Automatic Summon!", "<:SRT:1> Moonlight Haze *#3*"))

	assert.Empty(t, players.claims)
	assert.Empty(t, servers.serverClaims)
}

func TestHandleMessageRequiresClaimBody(t *testing.T) {
	players := &fakePlayerRepo{}
	servers := newFakeServerRepo()
	o := newTestOrchestrator(players, servers, &fakeResolver{ids: map[string]string{"dresden": "42"}})

	msg := claimMessage("Automatic Summon!", "<:SRT:1> Moonlight Haze *#3*")
	msg.Content = "Summoning…"
	o.HandleMessage(context.Background(), msg)

	assert.Empty(t, players.claims)
}

func TestHandleMessageUnresolvedOwnerStillRecorded(t *testing.T) {
	players := &fakePlayerRepo{}
	servers := newFakeServerRepo()
	o := newTestOrchestrator(players, servers, &fakeResolver{})

	o.HandleMessage(context.Background(), claimMessage("Automatic Summon!", "<:SRT:1> Moonlight Haze *#3*"))

	require.Len(t, players.claims, 1)
	assert.Equal(t, "", players.claims[0].UserID, "unmatched owner keeps an empty user id")
	assert.Equal(t, []string{"@srv"}, players.created)
}

func TestHandleMessageDedupAcrossEditDelivery(t *testing.T) {
	players := &fakePlayerRepo{}
	servers := newFakeServerRepo()
	o := newTestOrchestrator(players, servers, &fakeResolver{ids: map[string]string{"dresden": "42"}})

	msg := claimMessage("Automatic Summon!", "<:SRT:1> Moonlight Haze *#3*")
	o.HandleMessage(context.Background(), msg)
	o.HandleMessage(context.Background(), msg) // redelivered edit of the same event

	assert.Len(t, players.claims, 1)
	assert.Len(t, servers.serverClaims, 1)
}

func TestHandleMessageSkipsUltraTier(t *testing.T) {
	players := &fakePlayerRepo{}
	servers := newFakeServerRepo()
	o := newTestOrchestrator(players, servers, &fakeResolver{ids: map[string]string{"dresden": "42"}})

	o.HandleMessage(context.Background(), claimMessage("Automatic Summon!", "<:URT:1> Moonlight Haze *#3*"))

	assert.Empty(t, players.claims, "ultra tier claims are not ingested")
}

// The upstream bot announces the summon first and then edits the embed into
// the claimed card. The announcement has no card grammar and the edit has no
// summon title of its own, so exactly one claim must come out of the pair.
func TestHandleMessageSummonThenClaimEdit(t *testing.T) {
	players := &fakePlayerRepo{}
	servers := newFakeServerRepo()
	o := newTestOrchestrator(players, servers, &fakeResolver{ids: map[string]string{"dresden": "42"}})

	announcement := UpstreamMessage{
		AuthorID:    "upstream",
		GuildID:     "srv",
		SummonTitle: "Automatic Summon!",
		Title:       "Automatic Summon!",
		Timestamp:   time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	o.HandleMessage(context.Background(), announcement)

	assert.Empty(t, players.claims, "the announcement alone carries no claim")

	o.HandleMessage(context.Background(), claimMessage("Automatic Summon!", "<:SRT:1> Moonlight Haze *#3*"))

	require.Len(t, players.claims, 1)
	assert.Equal(t, "card-9912", players.claims[0].CardID)
}
