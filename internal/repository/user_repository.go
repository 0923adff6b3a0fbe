package repository

import (
	"time"

	"chatcore/internal/entity"

	"gorm.io/gorm"
)

// This repository manipulates user profiles. Profiles are created on
// registration and never hard-deleted; presence heartbeats are the hottest
// write path.
type UserRepository interface {
	Create(profile *entity.UserProfile) error

	GetByID(userID string) (*entity.UserProfile, error)      // Retrieves the profile for the given external user id
	GetByHandle(handle string) (*entity.UserProfile, error)  // Retrieves the profile owning the given unique handle
	GetMany(userIDs []string) ([]*entity.UserProfile, error) // Retrieves the profiles for the given ids, missing ids are skipped
	HandleExists(handle string) (bool, error)

	Update(profile *entity.UserProfile) error                                      // Last-write-wins save of profile fields
	SetPresence(userID string, presence entity.Presence, at time.Time) error       // Presence heartbeat, also bumps LastSeenAt/UpdatedAt
	UpdatedSince(userIDs []string, since time.Time) ([]*entity.UserProfile, error) // Profiles among userIDs changed after the watermark
}

// Implementation of the repository using a SQLite DB
type SQLiteUserRepository struct {
	db *gorm.DB
}

func NewSQLiteUserRepository(db *gorm.DB) UserRepository {
	return &SQLiteUserRepository{db}
}

func (repo *SQLiteUserRepository) Create(profile *entity.UserProfile) error {
	return repo.db.Create(profile).Error
}

func (repo *SQLiteUserRepository) GetByID(userID string) (*entity.UserProfile, error) {
	var profile entity.UserProfile
	err := repo.db.Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (repo *SQLiteUserRepository) GetByHandle(handle string) (*entity.UserProfile, error) {
	var profile entity.UserProfile
	err := repo.db.Where("handle = ?", handle).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (repo *SQLiteUserRepository) GetMany(userIDs []string) ([]*entity.UserProfile, error) {
	var profiles []*entity.UserProfile
	err := repo.db.Where("user_id IN ?", userIDs).Find(&profiles).Error
	return profiles, err
}

func (repo *SQLiteUserRepository) HandleExists(handle string) (bool, error) {
	var count int64
	err := repo.db.Model(&entity.UserProfile{}).Where("handle = ?", handle).Count(&count).Error
	return count > 0, err
}

func (repo *SQLiteUserRepository) Update(profile *entity.UserProfile) error {
	return repo.db.Save(profile).Error
}

func (repo *SQLiteUserRepository) SetPresence(userID string, presence entity.Presence, at time.Time) error {
	return repo.db.Model(&entity.UserProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"presence":     presence,
			"last_seen_at": at,
			"updated_at":   at,
		}).Error
}

func (repo *SQLiteUserRepository) UpdatedSince(userIDs []string, since time.Time) ([]*entity.UserProfile, error) {
	var profiles []*entity.UserProfile
	err := repo.db.Where("user_id IN ? AND updated_at > ?", userIDs, since).
		Order("updated_at ASC").
		Find(&profiles).Error
	return profiles, err
}
