package entity

import "time"

type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

// Conversation is a direct or group chat. Direct conversations are
// deduplicated per unordered user pair; group conversations carry a name and
// optional description/avatar. LastMessageAt and LastMessagePreview are
// denormalised for listing and kept in the same transaction as the message
// that produced them.
type Conversation struct {
	ID                 string           `gorm:"primaryKey" json:"id"`
	Type               ConversationType `gorm:"not null;index" json:"type"`
	Name               string           `json:"name,omitempty"`        // Group only
	Description        string           `json:"description,omitempty"` // Group only
	Avatar             string           `json:"avatar,omitempty"`      // Group only
	CreatedBy          string           `gorm:"not null;index" json:"createdBy"`
	Archived           bool             `gorm:"default:false" json:"archived"`
	LastMessageAt      time.Time        `gorm:"index" json:"lastMessageAt"`
	LastMessagePreview string           `json:"lastMessagePreview,omitempty"`
	CreatedAt          time.Time        `gorm:"not null" json:"createdAt"`
	UpdatedAt          time.Time        `gorm:"not null;index" json:"updatedAt"` // Conversation feed filters on it
}
