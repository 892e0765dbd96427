package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

const (
  RoleUser      = "user"
  RoleAssistant = "assistant"
)

// Message ids are strings: server-assigned ids are opaque tokens, while
// client-assigned provisional ids carry a recognizable prefix (see the
// reconcile package). MessageCount on the owning conversation is optimistic
// and not kept transactionally in step with message rows.
type Message struct {
  ID              string            `gorm:"primaryKey;column:id" json:"id"`
  ConversationID  string            `gorm:"index;not null;column:conversation_id" json:"conversationId"`
  UserID          uuid.UUID         `gorm:"index;column:user_id" json:"userId"`

  Role            string            `gorm:"not null;column:role" json:"role"`
  Content         string            `gorm:"type:text;column:content" json:"content"`
  Timestamp       time.Time         `gorm:"index;column:timestamp" json:"timestamp"`
  IsComplete      bool              `gorm:"column:is_complete" json:"isComplete"`

  // Knowledge-base citations returned by the agent, when present.
  Citations       datatypes.JSON    `gorm:"column:citations" json:"citations,omitempty"`

  CreatedAt       time.Time         `gorm:"not null" json:"-"`
  UpdatedAt       time.Time         `gorm:"not null" json:"-"`
}

func (Message) TableName() string {
  return "message"
}
