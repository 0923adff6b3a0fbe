package entity

import "time"

type FriendRequestStatus string

const (
	RequestPending   FriendRequestStatus = "pending"
	RequestAccepted  FriendRequestStatus = "accepted"
	RequestRejected  FriendRequestStatus = "rejected"
	RequestCancelled FriendRequestStatus = "cancelled"
)

// FriendRequest is the directed half of the friendship workflow. At most one
// pending row may exist per ordered (from, to) pair; terminal statuses are
// never re-entered.
type FriendRequest struct {
	ID         string              `gorm:"primaryKey" json:"id"`
	FromUserID string              `gorm:"not null;index:idx_request_pair" json:"fromUserId"`
	ToUserID   string              `gorm:"not null;index:idx_request_pair;index" json:"toUserId"`
	Status     FriendRequestStatus `gorm:"not null;default:pending;index" json:"status"`
	Message    string              `json:"message,omitempty"` // Optional greeting shown to the recipient
	CreatedAt  time.Time           `gorm:"not null;index" json:"createdAt"`
	UpdatedAt  time.Time           `gorm:"not null;index" json:"updatedAt"` // Bumped on accept/reject/cancel; the sent-request feed filters on it
}
