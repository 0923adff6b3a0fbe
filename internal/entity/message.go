package entity

import (
	"database/sql"
	"time"
)

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system" // Membership announcements etc., always server-generated
)

// Message is one row of the append-only per-conversation ledger. After
// creation only Content, Edited*, Deleted* and attachment state may change;
// deletion clears Content but keeps the row so ordering, ids and read
// receipts stay stable for pagination.
type Message struct {
	ID              string       `gorm:"primaryKey" json:"id"`
	ConversationID  string       `gorm:"not null;index:idx_msg_conv_created" json:"conversationId"`
	SenderID        string       `gorm:"not null;index" json:"senderId"`
	Content         string       `json:"content"`
	Type            MessageType  `gorm:"not null;default:text" json:"type"`
	ReplyToID       string       `gorm:"index" json:"replyToId,omitempty"` // Must reference an earlier, non-deleted message in the same conversation
	ForwardedFromID string       `json:"forwardedFromId,omitempty"`
	Edited          bool         `gorm:"default:false" json:"edited"`
	EditedAt        sql.NullTime `json:"editedAt,omitempty"`
	Deleted         bool         `gorm:"default:false;index" json:"deleted"`
	DeletedAt       sql.NullTime `json:"deletedAt,omitempty"` // Tombstone timestamp; not gorm.DeletedAt, the row must stay visible for ordering
	CreatedAt       time.Time    `gorm:"not null;index:idx_msg_conv_created" json:"createdAt"`

	Attachments []*Attachment `gorm:"-" json:"attachments,omitempty"` // Populated on read paths, not a column
}
