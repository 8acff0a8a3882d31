package models

import "time"

// ChatRole represents the role of a chat turn's author.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// ChatTurn is one turn of an "ask about item" conversation, keyed by the
// (platform user id, content item id) pair and ordered by creation time.
// Turns are append-only except the explicit bulk clear per pair.
type ChatTurn struct {
	ID             int64     `json:"id"`
	UserPlatformID int64     `json:"user_platform_id"`
	ItemID         int64     `json:"item_id"`
	Role           ChatRole  `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
