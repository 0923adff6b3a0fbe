package entity

import "time"

// Presence of a user as reported by client heartbeats.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceAway    Presence = "away"
	PresenceOffline Presence = "offline"
)

// UserProfile extends the opaque identity-provider user id with the
// chat-facing profile. The id is issued elsewhere; this table never
// authenticates anyone.
type UserProfile struct {
	UserID      string    `gorm:"primaryKey" json:"userId"`                         // Opaque external identity id
	Handle      string    `gorm:"uniqueIndex;default:null" json:"handle,omitempty"` // Optional unique human-chosen handle, used to add friends
	DisplayName string    `json:"displayName"`
	Avatar      string    `json:"avatar,omitempty"` // Storage key or resolved URL
	Bio         string    `json:"bio,omitempty"`
	Presence    Presence  `gorm:"default:offline" json:"presence"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
	CreatedAt   time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"not null;index" json:"updatedAt"` // Indexed: presence feed filters on it
}
