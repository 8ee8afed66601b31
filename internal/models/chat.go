package models

import "time"

// Message roles within a session transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type ChatSession struct {
	ID        string     `json:"id"`
	UserID    string     `json:"-"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// SessionSummary is a session annotated with its message count, as returned
// by session listings.
type SessionSummary struct {
	ChatSession
	MessageCount int `json:"messageCount"`
}

type Message struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"-"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	CodeLanguage *string   `json:"codeLanguage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
