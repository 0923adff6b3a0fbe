package service

import (
	stderrors "errors"
	"time"

	"chatcore/internal/entity"
	"chatcore/internal/repository"
	"chatcore/pkg/errors"
	"chatcore/pkg/logger"

	"gorm.io/gorm"
)

// MessageStatus is the derived delivery state of a sent message as seen by
// its sender.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"      // Persisted, nobody has read it
	StatusDelivered MessageStatus = "delivered" // Some group members have read it, not all
	StatusRead      MessageStatus = "read"      // Every other participant has read it
)

// ReadService tracks how far each participant has read in a conversation.
// Direct conversations use only the per-participant read cursor; group
// conversations additionally keep per-message receipts so senders can tell
// how many members have seen a message.
type ReadService interface {
	// MarkAsRead advances the reader's cursor through messageIDs. Already
	// marked messages are skipped, so repeating a call is harmless. Returns
	// how many receipts were newly recorded.
	MarkAsRead(conversationID, userID string, messageIDs []string) (int, error)

	UnreadCount(conversationID, userID string) (int64, error)

	// DeriveStatus reports the delivery state of the given message for its
	// sender.
	DeriveStatus(message *entity.Message) (MessageStatus, error)
}

type readService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	logger        *logger.Logger
}

func NewReadService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	log *logger.Logger,
) ReadService {
	return &readService{
		conversations: conversations,
		messages:      messages,
		logger:        log.With("component", "read-service"),
	}
}

func (s *readService) MarkAsRead(conversationID, userID string, messageIDs []string) (int, error) {
	participant, err := s.activeParticipant(conversationID, userID)
	if err != nil {
		return 0, err
	}
	conv, err := s.conversations.GetByID(conversationID)
	if err != nil {
		s.logger.Error("conversation lookup failed", "id", conversationID, "err", err)
		return 0, errors.Internal("internal server error")
	}

	now := time.Now()
	marked := 0
	var newest *entity.Message
	for _, messageID := range messageIDs {
		msg, err := s.messages.GetByID(messageID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			s.logger.Error("message lookup failed", "id", messageID, "err", err)
			return marked, errors.Internal("internal server error")
		}
		if msg.ConversationID != conversationID || msg.SenderID == userID || msg.Deleted {
			continue
		}
		if conv.Type == entity.ConversationDirect {
			if participant.LastReadAt.Valid && !msg.CreatedAt.After(participant.LastReadAt.Time) {
				continue // Already behind the cursor
			}
		} else {
			inserted, err := s.messages.InsertReceiptIfAbsent(messageID, userID, now)
			if err != nil {
				s.logger.Error("receipt insert failed", "message", messageID, "err", err)
				return marked, errors.Internal("internal server error")
			}
			if !inserted {
				continue
			}
		}
		marked++
		if newest == nil || msg.CreatedAt.After(newest.CreatedAt) {
			newest = msg
		}
	}

	// The cursor only moves forward.
	if newest != nil && (!participant.LastReadAt.Valid || newest.CreatedAt.After(participant.LastReadAt.Time)) {
		if err := s.conversations.UpdateReadCursor(conversationID, userID, newest.ID, newest.CreatedAt); err != nil {
			s.logger.Error("read cursor update failed", "conversation", conversationID, "err", err)
			return marked, errors.Internal("internal server error")
		}
	}
	return marked, nil
}

func (s *readService) UnreadCount(conversationID, userID string) (int64, error) {
	participant, err := s.activeParticipant(conversationID, userID)
	if err != nil {
		return 0, err
	}
	conv, err := s.conversations.GetByID(conversationID)
	if err != nil {
		s.logger.Error("conversation lookup failed", "id", conversationID, "err", err)
		return 0, errors.Internal("internal server error")
	}

	after := participant.JoinedAt
	if participant.LastReadAt.Valid && participant.LastReadAt.Time.After(after) {
		after = participant.LastReadAt.Time
	}

	var count int64
	if conv.Type == entity.ConversationDirect {
		count, err = s.messages.CountUnreadDirect(conversationID, userID, after)
	} else {
		count, err = s.messages.CountUnreadGroup(conversationID, userID, participant.JoinedAt)
	}
	if err != nil {
		s.logger.Error("unread count failed", "conversation", conversationID, "err", err)
		return 0, errors.Internal("internal server error")
	}
	return count, nil
}

func (s *readService) DeriveStatus(message *entity.Message) (MessageStatus, error) {
	conv, err := s.conversations.GetByID(message.ConversationID)
	if err != nil {
		s.logger.Error("conversation lookup failed", "id", message.ConversationID, "err", err)
		return StatusSent, errors.Internal("internal server error")
	}

	if conv.Type == entity.ConversationDirect {
		// Read iff the peer's cursor has passed the message.
		active, err := s.conversations.ListActiveParticipants(message.ConversationID)
		if err != nil {
			return StatusSent, errors.Internal("internal server error")
		}
		for _, p := range active {
			if p.UserID == message.SenderID {
				continue
			}
			if p.LastReadAt.Valid && !p.LastReadAt.Time.Before(message.CreatedAt) {
				return StatusRead, nil
			}
		}
		return StatusSent, nil
	}

	count, err := s.messages.CountReceipts(message.ID)
	if err != nil {
		s.logger.Error("receipt count failed", "message", message.ID, "err", err)
		return StatusSent, errors.Internal("internal server error")
	}
	if count == 0 {
		return StatusSent, nil
	}

	active, err := s.conversations.ListActiveParticipants(message.ConversationID)
	if err != nil {
		return StatusSent, errors.Internal("internal server error")
	}
	others := 0
	for _, p := range active {
		if p.UserID != message.SenderID {
			others++
		}
	}
	if int(count) >= others {
		return StatusRead, nil
	}
	return StatusDelivered, nil
}

func (s *readService) activeParticipant(conversationID, userID string) (*entity.Participant, error) {
	participant, err := s.conversations.GetParticipant(conversationID, userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrNotParticipant
		}
		s.logger.Error("participant lookup failed", "err", err)
		return nil, errors.Internal("internal server error")
	}
	if !participant.Active() {
		return nil, errors.ErrNotParticipant
	}
	return participant, nil
}
