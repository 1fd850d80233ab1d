package model

import "time"

// File is an uploaded document whose extracted text feeds the prompt of its conversation.
type File struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID string    `gorm:"size:64;not null;index" json:"conversation_id"`
	Name           string    `gorm:"size:256;not null" json:"name"`
	MimeType       string    `gorm:"size:128;not null" json:"mime_type"`
	Size           int64     `gorm:"not null" json:"size"`
	Content        string    `gorm:"type:longtext;not null" json:"-"`
	ObjectKey      string    `gorm:"size:512" json:"object_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (File) TableName() string {
	return "conversation_files"
}
