package models

import "time"

// CommandLog is one executed slash command, kept for moderation audits.
type CommandLog struct {
	ServerID  string    `bson:"serverID"`
	UserID    string    `bson:"userID"`
	Command   string    `bson:"command"`
	Options   string    `bson:"options,omitempty"`
	Timestamp time.Time `bson:"timestamp"`
}
