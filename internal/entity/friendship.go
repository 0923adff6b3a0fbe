package entity

import "time"

// Friendship stores one unordered pair as a single row keyed by the
// lexicographically sorted user ids, so A-B and B-A always resolve to the
// same record and the pair can never exist twice.
type Friendship struct {
	UserLowID  string    `gorm:"primaryKey" json:"userLowId"`  // Lexicographically smaller user id
	UserHighID string    `gorm:"primaryKey" json:"userHighId"` // Lexicographically larger user id
	CreatedAt  time.Time `gorm:"not null" json:"createdAt"`
}

// PairKey canonicalises two user ids into (low, high) order.
func PairKey(a, b string) (low, high string) {
	if a < b {
		return a, b
	}
	return b, a
}
