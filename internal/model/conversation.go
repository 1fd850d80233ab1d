package model

import "time"

// Conversation groups uploaded files and chat turns under an opaque id.
type Conversation struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"` // 0 = anonymous
	Title     string    `gorm:"size:128;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
