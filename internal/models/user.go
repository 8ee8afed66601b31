package models

import "time"

type User struct {
	ID         string     `json:"id"`
	TelegramID int64      `json:"telegramId"`
	Username   *string    `json:"username,omitempty"`
	FirstName  *string    `json:"firstName,omitempty"`
	LastName   *string    `json:"lastName,omitempty"`
	PhotoURL   *string    `json:"photoUrl,omitempty"`
	IsPremium  bool       `json:"isPremium"`
	IsActive   bool       `json:"-"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

// Profile carries the mutable attributes supplied by the messaging bot on
// each code issuance.
type Profile struct {
	Username  string
	FirstName string
	LastName  string
	PhotoURL  string
}

type AuthCode struct {
	ID        string
	Code      string
	UserID    string
	IsUsed    bool
	ExpiresAt time.Time
	CreatedAt time.Time
}
