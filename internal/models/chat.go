package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SenderUser = "user"
	SenderAI   = "ai"

	DefaultConversationTitle = "New Conversation"
)

type Conversation struct {
	gorm.Model
	UserID   *uint     `gorm:"index"`
	Title    string    `gorm:"size:255;not null"`
	IsActive bool      `gorm:"not null"`
	Messages []Message `gorm:"constraint:OnDelete:CASCADE"`
}

type Message struct {
	ID             uint      `gorm:"primaryKey"`
	ConversationID uint      `gorm:"index;not null"`
	Sender         string    `gorm:"size:10;not null"`
	Content        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"index"`
}
