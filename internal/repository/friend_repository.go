package repository

import (
	"time"

	"chatcore/internal/entity"

	"gorm.io/gorm"
)

// This repository manipulates the social graph: canonical friendship pairs
// and the friend-request workflow. Friendships are always stored once, keyed
// by the sorted pair, so lookups re-derive the key before hitting the table.
type FriendRepository interface {
	GetFriendship(a, b string) (*entity.Friendship, error) // Canonical pair lookup, argument order irrelevant
	DeleteFriendship(a, b string) (int64, error)           // Deletes the single canonical row, returns rows affected
	ListFriendIDs(userID string) ([]string, error)         // All friend ids of the user, from both sides of the pair

	CreateRequest(req *entity.FriendRequest) error
	GetRequest(id string) (*entity.FriendRequest, error)
	GetPendingBetween(fromID, toID string) (*entity.FriendRequest, error) // Pending request for the ordered pair, nil when absent
	ListPendingReceived(userID string) ([]*entity.FriendRequest, error)

	Resolve(id string, status entity.FriendRequestStatus, at time.Time) error // Terminal status flip without a friendship row
	AcceptRequest(req *entity.FriendRequest, at time.Time) error              // Transition to accepted and insert the canonical friendship, atomically

	ReceivedPendingSince(userID string, since time.Time) ([]*entity.FriendRequest, error) // New pending requests addressed to the user
	SentResolvedSince(userID string, since time.Time) ([]*entity.FriendRequest, error)    // Status changes to requests the user sent
}

// Implementation of the repository using a SQLite DB
type SQLiteFriendRepository struct {
	db *gorm.DB
}

func NewSQLiteFriendRepository(db *gorm.DB) FriendRepository {
	return &SQLiteFriendRepository{db}
}

func (repo *SQLiteFriendRepository) GetFriendship(a, b string) (*entity.Friendship, error) {
	low, high := entity.PairKey(a, b)
	var friendship entity.Friendship
	err := repo.db.Where("user_low_id = ? AND user_high_id = ?", low, high).First(&friendship).Error
	if err != nil {
		return nil, err
	}
	return &friendship, nil
}

func (repo *SQLiteFriendRepository) DeleteFriendship(a, b string) (int64, error) {
	low, high := entity.PairKey(a, b)
	res := repo.db.Where("user_low_id = ? AND user_high_id = ?", low, high).Delete(&entity.Friendship{})
	return res.RowsAffected, res.Error
}

func (repo *SQLiteFriendRepository) ListFriendIDs(userID string) ([]string, error) {
	var friendships []*entity.Friendship
	err := repo.db.Where("user_low_id = ? OR user_high_id = ?", userID, userID).Find(&friendships).Error
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(friendships))
	for _, f := range friendships {
		if f.UserLowID == userID {
			ids = append(ids, f.UserHighID)
		} else {
			ids = append(ids, f.UserLowID)
		}
	}
	return ids, nil
}

func (repo *SQLiteFriendRepository) CreateRequest(req *entity.FriendRequest) error {
	return repo.db.Create(req).Error
}

func (repo *SQLiteFriendRepository) GetRequest(id string) (*entity.FriendRequest, error) {
	var req entity.FriendRequest
	err := repo.db.Where("id = ?", id).First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (repo *SQLiteFriendRepository) GetPendingBetween(fromID, toID string) (*entity.FriendRequest, error) {
	var req entity.FriendRequest
	err := repo.db.
		Where("from_user_id = ? AND to_user_id = ? AND status = ?", fromID, toID, entity.RequestPending).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (repo *SQLiteFriendRepository) ListPendingReceived(userID string) ([]*entity.FriendRequest, error) {
	var reqs []*entity.FriendRequest
	err := repo.db.
		Where("to_user_id = ? AND status = ?", userID, entity.RequestPending).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, err
}

func (repo *SQLiteFriendRepository) Resolve(id string, status entity.FriendRequestStatus, at time.Time) error {
	return repo.db.Model(&entity.FriendRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": at}).Error
}

func (repo *SQLiteFriendRepository) AcceptRequest(req *entity.FriendRequest, at time.Time) error {
	return repo.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.FriendRequest{}).
			Where("id = ?", req.ID).
			Updates(map[string]interface{}{"status": entity.RequestAccepted, "updated_at": at}).Error; err != nil {
			return err
		}

		low, high := entity.PairKey(req.FromUserID, req.ToUserID)
		friendship := &entity.Friendship{
			UserLowID:  low,
			UserHighID: high,
			CreatedAt:  at,
		}
		if err := tx.Create(friendship).Error; err != nil {
			return err
		}
		return nil
	})
}

func (repo *SQLiteFriendRepository) ReceivedPendingSince(userID string, since time.Time) ([]*entity.FriendRequest, error) {
	var reqs []*entity.FriendRequest
	err := repo.db.
		Where("to_user_id = ? AND status = ? AND created_at > ?", userID, entity.RequestPending, since).
		Order("created_at ASC").
		Find(&reqs).Error
	return reqs, err
}

func (repo *SQLiteFriendRepository) SentResolvedSince(userID string, since time.Time) ([]*entity.FriendRequest, error) {
	var reqs []*entity.FriendRequest
	err := repo.db.
		Where("from_user_id = ? AND status <> ? AND updated_at > ?", userID, entity.RequestPending, since).
		Order("updated_at ASC").
		Find(&reqs).Error
	return reqs, err
}
