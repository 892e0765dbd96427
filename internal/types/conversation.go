package types

import (
  "time"

  "github.com/google/uuid"
)

// Conversation ids are opaque strings rather than uuids so that the id doubles
// as the agent session id on the invocation boundary.
type Conversation struct {
  ID              string            `gorm:"primaryKey;column:id" json:"id"`
  UserID          uuid.UUID         `gorm:"index;not null" json:"userId"`
  User            *User             `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`

  Title           string            `gorm:"not null;column:title" json:"title"`
  MessageCount    int               `gorm:"not null;default:0;column:message_count" json:"messageCount"`

  CreatedAt       time.Time         `gorm:"not null" json:"createdAt"`
  UpdatedAt       time.Time         `gorm:"not null" json:"updatedAt"`
}

func (Conversation) TableName() string {
  return "conversation"
}
