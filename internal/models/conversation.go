package models

import "time"

// ConversationRecord is one stored chat exchange. Rows are written once and
// never updated.
type ConversationRecord struct {
	ID               int64     `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	UserMessage      string    `json:"user_message"`
	AssistantMessage string    `json:"assistant_message"`
}
