package commands

import (
	"github.com/disgoorg/disgo/discord"
)

// Embed colors shared by every command response.
const (
	SuccessColor = 0x57F287
	ErrorColor   = 0xED4245
	InfoColor    = 0x5865F2
	WarnColor    = 0xFEE75C
)

var Commands = []discord.ApplicationCommandCreate{
	Gate,
	GiveawayAdmin,
	Wishlist,
	ServerSettings,
}
