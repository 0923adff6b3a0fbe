package entity

import (
	"database/sql"
	"time"
)

type ParticipantRole string

const (
	RoleOwner  ParticipantRole = "owner"
	RoleAdmin  ParticipantRole = "admin"
	RoleMember ParticipantRole = "member"
)

// Participant links a user to a conversation. A user is active iff LeftAt is
// null; leaving sets LeftAt instead of deleting the row, so re-adding a user
// resets the tombstone rather than inserting a duplicate.
type Participant struct {
	ConversationID    string          `gorm:"primaryKey" json:"conversationId"`
	UserID            string          `gorm:"primaryKey;index" json:"userId"`
	Role              ParticipantRole `gorm:"not null;default:member" json:"role"`
	JoinedAt          time.Time       `gorm:"not null" json:"joinedAt"`
	LeftAt            sql.NullTime    `gorm:"index" json:"leftAt,omitempty"` // Logical tombstone, never a row delete
	LastReadMessageID string          `json:"lastReadMessageId,omitempty"`
	LastReadAt        sql.NullTime    `json:"lastReadAt,omitempty"` // Read cursor; direct-chat unread counts derive from this alone
	Muted             bool            `gorm:"default:false" json:"muted"`
	Pinned            bool            `gorm:"default:false" json:"pinned"`
}

// Active reports whether the participant has not left the conversation.
func (p *Participant) Active() bool {
	return !p.LeftAt.Valid
}

// CanModerate reports whether the role may add members or delete others'
// messages.
func (p *Participant) CanModerate() bool {
	return p.Role == RoleOwner || p.Role == RoleAdmin
}
