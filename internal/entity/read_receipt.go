package entity

import "time"

// ReadReceipt records that a user read a group message. At most one row per
// (message, user). Direct conversations never write receipts; their read
// state is the peer's Participant cursor.
type ReadReceipt struct {
	MessageID string    `gorm:"primaryKey" json:"messageId"`
	UserID    string    `gorm:"primaryKey;index" json:"userId"`
	ReadAt    time.Time `gorm:"not null;index" json:"readAt"`
}
