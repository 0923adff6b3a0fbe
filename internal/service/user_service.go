package service

import (
	stderrors "errors"
	"regexp"
	"strings"
	"time"

	"chatcore/internal/entity"
	"chatcore/internal/repository"
	"chatcore/pkg/errors"
	"chatcore/pkg/logger"

	"gorm.io/gorm"
)

var handlePattern = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)

// ProfileUpdate carries the mutable profile fields. Nil pointers leave the
// stored value untouched; last write wins on the rest.
type ProfileUpdate struct {
	DisplayName *string
	Avatar      *string
	Bio         *string
}

// Service for user profiles and presence. Identity itself is issued
// elsewhere; this service only decorates an opaque user id.
type UserService interface {
	CreateProfile(userID, handle, displayName, avatar string) (*entity.UserProfile, error)
	GetProfile(userID string) (*entity.UserProfile, error)
	FindByHandle(handle string) (*entity.UserProfile, error)
	UpdateProfile(userID string, update ProfileUpdate) (*entity.UserProfile, error)
	Heartbeat(userID string, presence entity.Presence) error
}

type userService struct {
	users  repository.UserRepository
	logger *logger.Logger
}

func NewUserService(users repository.UserRepository, log *logger.Logger) UserService {
	return &userService{
		users:  users,
		logger: log.With("component", "user-service"),
	}
}

func (s *userService) CreateProfile(userID, handle, displayName, avatar string) (*entity.UserProfile, error) {
	if userID == "" {
		return nil, errors.InvalidArg("user id is required")
	}

	if _, err := s.users.GetByID(userID); err == nil {
		return nil, errors.ErrProfileExists
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("profile lookup failed", "user", userID, "err", err)
		return nil, errors.Internal("internal server error")
	}

	handle = strings.ToLower(strings.TrimSpace(handle))
	if handle != "" {
		if !handlePattern.MatchString(handle) {
			return nil, errors.InvalidArg("handle must be 3-32 chars, lowercase letters, numbers and underscores only")
		}
		taken, err := s.users.HandleExists(handle)
		if err != nil {
			s.logger.Error("handle lookup failed", "handle", handle, "err", err)
			return nil, errors.Internal("internal server error")
		}
		if taken {
			return nil, errors.ErrHandleTaken
		}
	}

	now := time.Now()
	profile := &entity.UserProfile{
		UserID:      userID,
		Handle:      handle,
		DisplayName: displayName,
		Avatar:      avatar,
		Presence:    entity.PresenceOffline,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.users.Create(profile); err != nil {
		s.logger.Error("profile insert failed", "user", userID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	return profile, nil
}

func (s *userService) GetProfile(userID string) (*entity.UserProfile, error) {
	profile, err := s.users.GetByID(userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUserNotFound
		}
		s.logger.Error("profile lookup failed", "user", userID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	return profile, nil
}

func (s *userService) FindByHandle(handle string) (*entity.UserProfile, error) {
	profile, err := s.users.GetByHandle(strings.ToLower(strings.TrimSpace(handle)))
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUserNotFound
		}
		s.logger.Error("handle lookup failed", "handle", handle, "err", err)
		return nil, errors.Internal("internal server error")
	}
	return profile, nil
}

func (s *userService) UpdateProfile(userID string, update ProfileUpdate) (*entity.UserProfile, error) {
	profile, err := s.GetProfile(userID)
	if err != nil {
		return nil, err
	}

	if update.DisplayName != nil {
		profile.DisplayName = *update.DisplayName
	}
	if update.Avatar != nil {
		profile.Avatar = *update.Avatar
	}
	if update.Bio != nil {
		profile.Bio = *update.Bio
	}
	profile.UpdatedAt = time.Now()

	if err := s.users.Update(profile); err != nil {
		s.logger.Error("profile update failed", "user", userID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	return profile, nil
}

func (s *userService) Heartbeat(userID string, presence entity.Presence) error {
	switch presence {
	case entity.PresenceOnline, entity.PresenceAway, entity.PresenceOffline:
	default:
		return errors.InvalidArg("unknown presence value")
	}
	if err := s.users.SetPresence(userID, presence, time.Now()); err != nil {
		s.logger.Error("presence update failed", "user", userID, "err", err)
		return errors.Internal("internal server error")
	}
	return nil
}
