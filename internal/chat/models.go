package chat

import (
	"time"

	"github.com/suPer8Hu/chat-ai/internal/models"
)

type Conversation struct {
	ID        uint64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string      `gorm:"type:varchar(36);not null;index:idx_conv_user_updated,priority:1" json:"-"`
	User      models.User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Title     string      `gorm:"type:varchar(255);not null" json:"title"`
	Turns     []Turn      `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `gorm:"index:idx_conv_user_updated,priority:2" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

// Turn is one user message and the assistant reply to it. Turns are never updated.
type Turn struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64    `gorm:"not null;index" json:"conversation_id"`
	Message        string    `gorm:"type:text;not null" json:"message"`
	Reply          string    `gorm:"type:text;not null" json:"reply"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Turn) TableName() string { return "chat_turns" }
