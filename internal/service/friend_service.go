package service

import (
	stderrors "errors"
	"time"

	"chatcore/internal/entity"
	"chatcore/internal/repository"
	"chatcore/pkg/errors"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Relationship between two users as seen from the first one.
type Relationship string

const (
	RelationSelf            Relationship = "self"
	RelationFriend          Relationship = "friend"
	RelationSentPending     Relationship = "sent_pending"
	RelationReceivedPending Relationship = "received_pending"
	RelationStranger        Relationship = "stranger"
)

type RequestAction string

const (
	ActionAccept RequestAction = "accept"
	ActionReject RequestAction = "reject"
)

// SendRequestResult distinguishes a normal pending request from the
// mutual-request race, where the reverse request is accepted on the spot and
// no new request row is created.
type SendRequestResult struct {
	RequestID    string `json:"requestId,omitempty"`
	AutoAccepted bool   `json:"autoAccepted"`
}

// Service for the social graph: the friend-request workflow and the
// canonical friendship pairs it produces.
type FriendService interface {
	SendRequest(fromUserID, toHandle, message string) (*SendRequestResult, error)
	Respond(requestID, byUserID string, action RequestAction) error
	Cancel(requestID, byUserID string) error
	ListFriends(userID string) ([]*entity.UserProfile, error)
	ListReceivedRequests(userID string) ([]*entity.FriendRequest, error)
	RemoveFriend(userID, friendID string) error
	CheckRelationship(userID, otherID string) (Relationship, error)
}

type friendService struct {
	friends repository.FriendRepository
	users   repository.UserRepository
	logger  *logger.Logger
}

func NewFriendService(friends repository.FriendRepository, users repository.UserRepository, log *logger.Logger) FriendService {
	return &friendService{
		friends: friends,
		users:   users,
		logger:  log.With("component", "friend-service"),
	}
}

func (s *friendService) SendRequest(fromUserID, toHandle, message string) (*SendRequestResult, error) {
	target, err := s.users.GetByHandle(toHandle)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUserNotFound
		}
		s.logger.Error("handle lookup failed", "handle", toHandle, "err", err)
		return nil, errors.Internal("internal server error")
	}
	if target.UserID == fromUserID {
		return nil, errors.ErrSelfFriendship
	}

	if _, err := s.friends.GetFriendship(fromUserID, target.UserID); err == nil {
		return nil, errors.ErrAlreadyFriends
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("friendship lookup failed", "err", err)
		return nil, errors.Internal("internal server error")
	}

	// Mutual-request race: the target already asked first. Accept their
	// request instead of stacking a second pending row in the other
	// direction.
	if reverse, err := s.friends.GetPendingBetween(target.UserID, fromUserID); err == nil {
		if err := s.friends.AcceptRequest(reverse, time.Now()); err != nil {
			s.logger.Error("auto-accept failed", "request", reverse.ID, "err", err)
			return nil, errors.Internal("internal server error")
		}
		s.logger.Info("friend request auto-accepted", "from", fromUserID, "to", target.UserID)
		return &SendRequestResult{RequestID: reverse.ID, AutoAccepted: true}, nil
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("reverse request lookup failed", "err", err)
		return nil, errors.Internal("internal server error")
	}

	if _, err := s.friends.GetPendingBetween(fromUserID, target.UserID); err == nil {
		return nil, errors.ErrDuplicatePending
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("forward request lookup failed", "err", err)
		return nil, errors.Internal("internal server error")
	}

	now := time.Now()
	req := &entity.FriendRequest{
		ID:         uuid.New().String(),
		FromUserID: fromUserID,
		ToUserID:   target.UserID,
		Status:     entity.RequestPending,
		Message:    message,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.friends.CreateRequest(req); err != nil {
		s.logger.Error("request insert failed", "err", err)
		return nil, errors.Internal("internal server error")
	}
	return &SendRequestResult{RequestID: req.ID}, nil
}

func (s *friendService) Respond(requestID, byUserID string, action RequestAction) error {
	req, err := s.getRequest(requestID)
	if err != nil {
		return err
	}
	if req.ToUserID != byUserID {
		return errors.ErrNotRequestTarget
	}
	if req.Status != entity.RequestPending {
		return errors.ErrAlreadyResolved
	}

	switch action {
	case ActionAccept:
		if err := s.friends.AcceptRequest(req, time.Now()); err != nil {
			s.logger.Error("accept failed", "request", requestID, "err", err)
			return errors.Internal("internal server error")
		}
	case ActionReject:
		if err := s.friends.Resolve(requestID, entity.RequestRejected, time.Now()); err != nil {
			s.logger.Error("reject failed", "request", requestID, "err", err)
			return errors.Internal("internal server error")
		}
	default:
		return errors.InvalidArg("action must be accept or reject")
	}
	return nil
}

func (s *friendService) Cancel(requestID, byUserID string) error {
	req, err := s.getRequest(requestID)
	if err != nil {
		return err
	}
	if req.FromUserID != byUserID {
		return errors.ErrNotRequestSender
	}
	if req.Status != entity.RequestPending {
		return errors.ErrAlreadyResolved
	}
	if err := s.friends.Resolve(requestID, entity.RequestCancelled, time.Now()); err != nil {
		s.logger.Error("cancel failed", "request", requestID, "err", err)
		return errors.Internal("internal server error")
	}
	return nil
}

func (s *friendService) ListFriends(userID string) ([]*entity.UserProfile, error) {
	ids, err := s.friends.ListFriendIDs(userID)
	if err != nil {
		s.logger.Error("friend list failed", "user", userID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	if len(ids) == 0 {
		return []*entity.UserProfile{}, nil
	}
	profiles, err := s.users.GetMany(ids)
	if err != nil {
		s.logger.Error("friend profiles lookup failed", "user", userID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	return profiles, nil
}

func (s *friendService) ListReceivedRequests(userID string) ([]*entity.FriendRequest, error) {
	reqs, err := s.friends.ListPendingReceived(userID)
	if err != nil {
		s.logger.Error("received requests lookup failed", "user", userID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	return reqs, nil
}

func (s *friendService) RemoveFriend(userID, friendID string) error {
	affected, err := s.friends.DeleteFriendship(userID, friendID)
	if err != nil {
		s.logger.Error("unfriend failed", "user", userID, "friend", friendID, "err", err)
		return errors.Internal("internal server error")
	}
	if affected == 0 {
		return errors.ErrNotFriendsYet
	}
	return nil
}

func (s *friendService) CheckRelationship(userID, otherID string) (Relationship, error) {
	if userID == otherID {
		return RelationSelf, nil
	}

	if _, err := s.friends.GetFriendship(userID, otherID); err == nil {
		return RelationFriend, nil
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return "", errors.Internal("internal server error")
	}

	if _, err := s.friends.GetPendingBetween(userID, otherID); err == nil {
		return RelationSentPending, nil
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return "", errors.Internal("internal server error")
	}

	if _, err := s.friends.GetPendingBetween(otherID, userID); err == nil {
		return RelationReceivedPending, nil
	} else if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return "", errors.Internal("internal server error")
	}

	return RelationStranger, nil
}

func (s *friendService) getRequest(requestID string) (*entity.FriendRequest, error) {
	req, err := s.friends.GetRequest(requestID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrRequestNotFound
		}
		s.logger.Error("request lookup failed", "request", requestID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	return req, nil
}
