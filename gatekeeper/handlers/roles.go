package handlers

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/snowflake/v2"
)

// PremiumRoleManager grants and revokes the premium Discord role in the
// gate guild.
type PremiumRoleManager struct {
	client  bot.Client
	guildID snowflake.ID
	roleID  snowflake.ID
}

func NewPremiumRoleManager(client bot.Client, guildID, roleID snowflake.ID) *PremiumRoleManager {
	return &PremiumRoleManager{client: client, guildID: guildID, roleID: roleID}
}

func (m *PremiumRoleManager) GrantPremium(ctx context.Context, userID string) error {
	id, err := snowflake.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	return m.client.Rest().AddMemberRole(m.guildID, id, m.roleID)
}

func (m *PremiumRoleManager) RevokePremium(ctx context.Context, userID string) error {
	id, err := snowflake.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	return m.client.Rest().RemoveMemberRole(m.guildID, id, m.roleID)
}

// MemberRoleChecker answers bonus-role questions from the member cache.
// A cache miss reads as "no bonus"; drops are best-effort.
type MemberRoleChecker struct {
	client       bot.Client
	guildID      snowflake.ID
	boosterRoles map[snowflake.ID]struct{}
	clanRoles    map[snowflake.ID]struct{}
}

func NewMemberRoleChecker(client bot.Client, guildID snowflake.ID, boosterRoles, clanRoles []snowflake.ID) *MemberRoleChecker {
	c := &MemberRoleChecker{
		client:       client,
		guildID:      guildID,
		boosterRoles: make(map[snowflake.ID]struct{}, len(boosterRoles)),
		clanRoles:    make(map[snowflake.ID]struct{}, len(clanRoles)),
	}
	for _, r := range boosterRoles {
		c.boosterRoles[r] = struct{}{}
	}
	for _, r := range clanRoles {
		c.clanRoles[r] = struct{}{}
	}
	return c
}

func (c *MemberRoleChecker) HasBoosterRole(userID string) bool {
	return c.hasAny(userID, c.boosterRoles)
}

func (c *MemberRoleChecker) HasClanRole(userID string) bool {
	return c.hasAny(userID, c.clanRoles)
}

func (c *MemberRoleChecker) hasAny(userID string, roles map[snowflake.ID]struct{}) bool {
	id, err := snowflake.Parse(userID)
	if err != nil {
		return false
	}
	member, ok := c.client.Caches().Member(c.guildID, id)
	if !ok {
		return false
	}
	for _, roleID := range member.RoleIDs {
		if _, found := roles[roleID]; found {
			return true
		}
	}
	return false
}
