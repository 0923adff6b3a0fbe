package repository

import (
	"time"

	"chatcore/internal/entity"

	"gorm.io/gorm"
)

// This repository manipulates the append-only message ledger and its read
// receipts. A send must never be observable without its conversation preview
// update, so both happen inside one transaction.
type MessageRepository interface {
	CreateWithPreview(message *entity.Message, preview string) error
	CreateWithAttachment(message *entity.Message, attachment *entity.Attachment, preview string) error

	GetByID(id string) (*entity.Message, error)
	Page(conversationID string, before time.Time, limit int) ([]*entity.Message, error) // Non-deleted, createdAt < before, newest first
	Search(conversationID, query string, limit int) ([]*entity.Message, error)
	CreatedSince(conversationID string, since time.Time) ([]*entity.Message, error)

	UpdateContent(id, newContent string, at time.Time) error // Marks the message edited
	Tombstone(id string, at time.Time) error                 // Clears content, sets deleted, removes its receipts

	ListAttachments(messageIDs []string) ([]*entity.Attachment, error) // All attachments of the given messages, one query
	SetUploadStatus(attachmentID string, status entity.UploadStatus) error

	InsertReceiptIfAbsent(messageID, userID string, at time.Time) (bool, error) // Returns whether a row was inserted
	CountReceipts(messageID string) (int64, error)
	HasReceipt(messageID, userID string) (bool, error)
	ReceiptsSince(conversationID, userID string, since time.Time) ([]*entity.ReadReceipt, error) // Receipts left by users other than userID

	CountUnreadDirect(conversationID, userID string, after time.Time) (int64, error)
	CountUnreadGroup(conversationID, userID string, after time.Time) (int64, error)

	CountMessages(conversationID string) (int64, error)           // Non-deleted ledger size
	CountBySender(conversationID, senderID string) (int64, error) // Non-deleted messages the sender authored
}

// Implementation of the repository using a SQLite DB
type SQLiteMessageRepository struct {
	db *gorm.DB
}

func NewSQLiteMessageRepository(db *gorm.DB) MessageRepository {
	return &SQLiteMessageRepository{db}
}

func (repo *SQLiteMessageRepository) CreateWithPreview(message *entity.Message, preview string) error {
	return repo.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return applyPreview(tx, message.ConversationID, preview, message.CreatedAt)
	})
}

func (repo *SQLiteMessageRepository) CreateWithAttachment(message *entity.Message, attachment *entity.Attachment, preview string) error {
	return repo.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		if err := tx.Create(attachment).Error; err != nil {
			return err
		}
		return applyPreview(tx, message.ConversationID, preview, message.CreatedAt)
	})
}

func (repo *SQLiteMessageRepository) GetByID(id string) (*entity.Message, error) {
	var message entity.Message
	err := repo.db.Where("id = ?", id).First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (repo *SQLiteMessageRepository) Page(conversationID string, before time.Time, limit int) ([]*entity.Message, error) {
	var messages []*entity.Message
	q := repo.db.
		Where("conversation_id = ? AND deleted = ?", conversationID, false).
		Order("created_at DESC").
		Limit(limit)
	if !before.IsZero() {
		q = q.Where("created_at < ?", before)
	}
	err := q.Find(&messages).Error
	return messages, err
}

func (repo *SQLiteMessageRepository) Search(conversationID, query string, limit int) ([]*entity.Message, error) {
	var messages []*entity.Message
	err := repo.db.
		Where("conversation_id = ? AND deleted = ? AND content LIKE ?", conversationID, false, "%"+query+"%").
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (repo *SQLiteMessageRepository) CreatedSince(conversationID string, since time.Time) ([]*entity.Message, error) {
	var messages []*entity.Message
	err := repo.db.
		Where("conversation_id = ? AND deleted = ? AND created_at > ?", conversationID, false, since).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

func (repo *SQLiteMessageRepository) UpdateContent(id, newContent string, at time.Time) error {
	return repo.db.Model(&entity.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":   newContent,
			"edited":    true,
			"edited_at": at,
		}).Error
}

func (repo *SQLiteMessageRepository) Tombstone(id string, at time.Time) error {
	return repo.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.Message{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"content":    "",
				"deleted":    true,
				"deleted_at": at,
			}).Error; err != nil {
			return err
		}
		// The tombstone stays for ordering; its receipts do not.
		return tx.Where("message_id = ?", id).Delete(&entity.ReadReceipt{}).Error
	})
}

func (repo *SQLiteMessageRepository) ListAttachments(messageIDs []string) ([]*entity.Attachment, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var attachments []*entity.Attachment
	err := repo.db.
		Where("message_id IN ?", messageIDs).
		Order("created_at ASC").
		Find(&attachments).Error
	return attachments, err
}

func (repo *SQLiteMessageRepository) SetUploadStatus(attachmentID string, status entity.UploadStatus) error {
	return repo.db.Model(&entity.Attachment{}).
		Where("id = ?", attachmentID).
		Update("upload_status", status).Error
}

func (repo *SQLiteMessageRepository) InsertReceiptIfAbsent(messageID, userID string, at time.Time) (bool, error) {
	exists, err := repo.HasReceipt(messageID, userID)
	if err != nil || exists {
		return false, err
	}
	receipt := &entity.ReadReceipt{MessageID: messageID, UserID: userID, ReadAt: at}
	if err := repo.db.Create(receipt).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (repo *SQLiteMessageRepository) CountReceipts(messageID string) (int64, error) {
	var count int64
	err := repo.db.Model(&entity.ReadReceipt{}).Where("message_id = ?", messageID).Count(&count).Error
	return count, err
}

func (repo *SQLiteMessageRepository) HasReceipt(messageID, userID string) (bool, error) {
	var count int64
	err := repo.db.Model(&entity.ReadReceipt{}).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Count(&count).Error
	return count > 0, err
}

func (repo *SQLiteMessageRepository) ReceiptsSince(conversationID, userID string, since time.Time) ([]*entity.ReadReceipt, error) {
	var receipts []*entity.ReadReceipt
	err := repo.db.
		Where("user_id <> ? AND read_at > ?", userID, since).
		Where("message_id IN (?)", repo.db.Model(&entity.Message{}).
			Select("id").
			Where("conversation_id = ?", conversationID)).
		Order("read_at ASC").
		Find(&receipts).Error
	return receipts, err
}

func (repo *SQLiteMessageRepository) CountUnreadDirect(conversationID, userID string, after time.Time) (int64, error) {
	var count int64
	err := repo.db.Model(&entity.Message{}).
		Where("conversation_id = ? AND deleted = ? AND sender_id <> ? AND created_at > ?",
			conversationID, false, userID, after).
		Count(&count).Error
	return count, err
}

func (repo *SQLiteMessageRepository) CountUnreadGroup(conversationID, userID string, after time.Time) (int64, error) {
	var count int64
	err := repo.db.Model(&entity.Message{}).
		Where("conversation_id = ? AND deleted = ? AND sender_id <> ? AND created_at > ?",
			conversationID, false, userID, after).
		Where("id NOT IN (?)", repo.db.Model(&entity.ReadReceipt{}).
			Select("message_id").
			Where("user_id = ?", userID)).
		Count(&count).Error
	return count, err
}

func (repo *SQLiteMessageRepository) CountMessages(conversationID string) (int64, error) {
	var count int64
	err := repo.db.Model(&entity.Message{}).
		Where("conversation_id = ? AND deleted = ?", conversationID, false).
		Count(&count).Error
	return count, err
}

func (repo *SQLiteMessageRepository) CountBySender(conversationID, senderID string) (int64, error) {
	var count int64
	err := repo.db.Model(&entity.Message{}).
		Where("conversation_id = ? AND deleted = ? AND sender_id = ?", conversationID, false, senderID).
		Count(&count).Error
	return count, err
}
