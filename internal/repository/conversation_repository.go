package repository

import (
	"sort"
	"time"

	"chatcore/internal/entity"

	"gorm.io/gorm"
)

// ParticipantEvent is one join/leave transition surfaced by the change feed.
type ParticipantEvent struct {
	Type       string // "joined" or "left"
	UserID     string
	Role       entity.ParticipantRole
	OccurredAt time.Time
}

// This repository manipulates conversations and their participant rows.
// Compound writes that must be visible together (a conversation plus its
// participants plus an announcement message) run in one transaction.
type ConversationRepository interface {
	CreateWithParticipants(conv *entity.Conversation, participants []*entity.Participant, announcement *entity.Message) error

	GetByID(id string) (*entity.Conversation, error)
	GetParticipant(conversationID, userID string) (*entity.Participant, error) // Returns the row whether active or left
	ListActiveParticipants(conversationID string) ([]*entity.Participant, error)
	ListParticipationsForUser(userID string) ([]*entity.Participant, error) // Active participations only
	FindDirectBetween(a, b string) (*entity.Conversation, error)            // Existing active two-party direct conversation, nil when absent

	AddParticipants(conversationID string, joins []*entity.Participant, rejoins []string, announcement *entity.Message, at time.Time) error
	MarkLeft(conversationID, userID string, announcement *entity.Message, at time.Time) error
	UpdateSettings(conversationID, userID string, fields map[string]interface{}) error
	UpdateReadCursor(conversationID, userID string, lastReadMessageID string, at time.Time) error

	UpdatedSinceForUser(userID string, since time.Time) ([]*entity.Conversation, error)
	ParticipantEventsSince(conversationID string, since time.Time) ([]ParticipantEvent, error)
}

// Implementation of the repository using a SQLite DB
type SQLiteConversationRepository struct {
	db *gorm.DB
}

func NewSQLiteConversationRepository(db *gorm.DB) ConversationRepository {
	return &SQLiteConversationRepository{db}
}

func (repo *SQLiteConversationRepository) CreateWithParticipants(conv *entity.Conversation, participants []*entity.Participant, announcement *entity.Message) error {
	return repo.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		for _, p := range participants {
			if err := tx.Create(p).Error; err != nil {
				return err
			}
		}
		if announcement != nil {
			if err := tx.Create(announcement).Error; err != nil {
				return err
			}
			if err := applyPreview(tx, conv.ID, announcement.Content, announcement.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *SQLiteConversationRepository) GetByID(id string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := repo.db.Where("id = ?", id).First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (repo *SQLiteConversationRepository) GetParticipant(conversationID, userID string) (*entity.Participant, error) {
	var p entity.Participant
	err := repo.db.Where("conversation_id = ? AND user_id = ?", conversationID, userID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (repo *SQLiteConversationRepository) ListActiveParticipants(conversationID string) ([]*entity.Participant, error) {
	var participants []*entity.Participant
	err := repo.db.
		Where("conversation_id = ? AND left_at IS NULL", conversationID).
		Find(&participants).Error
	return participants, err
}

func (repo *SQLiteConversationRepository) ListParticipationsForUser(userID string) ([]*entity.Participant, error) {
	var participations []*entity.Participant
	err := repo.db.
		Where("user_id = ? AND left_at IS NULL", userID).
		Find(&participations).Error
	return participations, err
}

func (repo *SQLiteConversationRepository) FindDirectBetween(a, b string) (*entity.Conversation, error) {
	// Two-step: candidate direct conversations of one user, then exact match
	// of the active participant set. Matches how the original resolved the
	// pair before inserting a duplicate.
	var candidates []*entity.Participant
	err := repo.db.
		Joins("JOIN conversations ON conversations.id = participants.conversation_id").
		Where("participants.user_id = ? AND participants.left_at IS NULL AND conversations.type = ?", a, entity.ConversationDirect).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		others, err := repo.ListActiveParticipants(candidate.ConversationID)
		if err != nil {
			return nil, err
		}
		if len(others) != 2 {
			continue
		}
		for _, p := range others {
			if p.UserID == b {
				return repo.GetByID(candidate.ConversationID)
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (repo *SQLiteConversationRepository) AddParticipants(conversationID string, joins []*entity.Participant, rejoins []string, announcement *entity.Message, at time.Time) error {
	return repo.db.Transaction(func(tx *gorm.DB) error {
		for _, p := range joins {
			if err := tx.Create(p).Error; err != nil {
				return err
			}
		}
		if len(rejoins) > 0 {
			if err := tx.Model(&entity.Participant{}).
				Where("conversation_id = ? AND user_id IN ?", conversationID, rejoins).
				Updates(map[string]interface{}{
					"left_at":   nil,
					"joined_at": at,
					"role":      entity.RoleMember,
				}).Error; err != nil {
				return err
			}
		}
		if announcement != nil {
			if err := tx.Create(announcement).Error; err != nil {
				return err
			}
			if err := applyPreview(tx, conversationID, announcement.Content, announcement.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *SQLiteConversationRepository) MarkLeft(conversationID, userID string, announcement *entity.Message, at time.Time) error {
	return repo.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.Participant{}).
			Where("conversation_id = ? AND user_id = ?", conversationID, userID).
			Update("left_at", at).Error; err != nil {
			return err
		}
		if announcement != nil {
			if err := tx.Create(announcement).Error; err != nil {
				return err
			}
			if err := applyPreview(tx, conversationID, announcement.Content, announcement.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (repo *SQLiteConversationRepository) UpdateSettings(conversationID, userID string, fields map[string]interface{}) error {
	return repo.db.Model(&entity.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(fields).Error
}

func (repo *SQLiteConversationRepository) UpdateReadCursor(conversationID, userID string, lastReadMessageID string, at time.Time) error {
	fields := map[string]interface{}{"last_read_at": at}
	if lastReadMessageID != "" {
		fields["last_read_message_id"] = lastReadMessageID
	}
	return repo.db.Model(&entity.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(fields).Error
}

func (repo *SQLiteConversationRepository) UpdatedSinceForUser(userID string, since time.Time) ([]*entity.Conversation, error) {
	var convs []*entity.Conversation
	err := repo.db.
		Joins("JOIN participants ON participants.conversation_id = conversations.id").
		Where("participants.user_id = ? AND participants.left_at IS NULL AND conversations.updated_at > ?", userID, since).
		Order("conversations.updated_at ASC").
		Find(&convs).Error
	return convs, err
}

func (repo *SQLiteConversationRepository) ParticipantEventsSince(conversationID string, since time.Time) ([]ParticipantEvent, error) {
	var participants []*entity.Participant
	err := repo.db.
		Where("conversation_id = ?", conversationID).
		Where("joined_at > ? OR (left_at IS NOT NULL AND left_at > ?)", since, since).
		Find(&participants).Error
	if err != nil {
		return nil, err
	}

	events := make([]ParticipantEvent, 0, len(participants))
	for _, p := range participants {
		if p.JoinedAt.After(since) {
			events = append(events, ParticipantEvent{
				Type:       "joined",
				UserID:     p.UserID,
				Role:       p.Role,
				OccurredAt: p.JoinedAt,
			})
		}
		if p.LeftAt.Valid && p.LeftAt.Time.After(since) {
			events = append(events, ParticipantEvent{
				Type:       "left",
				UserID:     p.UserID,
				Role:       p.Role,
				OccurredAt: p.LeftAt.Time,
			})
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].OccurredAt.Before(events[j].OccurredAt) })
	return events, nil
}

// applyPreview denormalises the latest visible message onto the conversation
// row inside the caller's transaction.
func applyPreview(tx *gorm.DB, conversationID, preview string, at time.Time) error {
	return tx.Model(&entity.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message_at":      at,
			"last_message_preview": preview,
			"updated_at":           at,
		}).Error
}
