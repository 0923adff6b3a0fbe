package service

import (
	stderrors "errors"
	"strings"
	"time"
	"unicode/utf8"

	"chatcore/config"
	"chatcore/internal/entity"
	"chatcore/internal/repository"
	"chatcore/internal/storage"
	"chatcore/pkg/errors"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SendParams carries everything needed to append one message to a
// conversation ledger.
type SendParams struct {
	ConversationID  string
	SenderID        string
	Content         string
	Type            entity.MessageType
	ReplyToID       string
	ForwardedFromID string
}

// AttachmentParams describes an upload attached to a new message.
type AttachmentParams struct {
	Type         entity.AttachmentType
	Filename     string
	MimeType     string
	Size         int64
	StorageKey   string
	URL          string
	ThumbnailURL string
	Width        int
	Height       int
	Duration     int
}

// MessagePage is one page of the ledger walked backwards in time. Messages
// are in ascending creation order; NextCursor is the creation time of the
// oldest message and feeds the next call's Before. HasMore is true exactly
// when the page came back full.
type MessagePage struct {
	Messages   []*entity.Message `json:"messages"`
	NextCursor time.Time         `json:"nextCursor"`
	HasMore    bool              `json:"hasMore"`
}

// MessageStats summarises one member's view of a conversation ledger.
type MessageStats struct {
	Total  int64 `json:"total"`  // Non-deleted messages in the conversation
	Sent   int64 `json:"sent"`   // Authored by the requester
	Unread int64 `json:"unread"` // Per the requester's read state
}

// MessageService owns the per-conversation message ledger: appends, edits,
// tombstone deletes, search and cursor pagination.
type MessageService interface {
	Send(params SendParams) (*entity.Message, error)
	SendWithAttachment(params SendParams, attachment AttachmentParams) (*entity.Message, *entity.Attachment, error)
	GetPage(conversationID, requesterID string, before time.Time, limit int) (*MessagePage, error)
	Edit(messageID, userID, newContent string) error
	Delete(messageID, userID string) error
	Search(conversationID, requesterID, query string, limit int) ([]*entity.Message, error)
	Stats(conversationID, requesterID string) (*MessageStats, error)
	CompleteUpload(attachmentID string, ok bool) error
}

type messageService struct {
	messages      repository.MessageRepository
	conversations ConversationService
	reads         ReadService
	objects       storage.ObjectStore
	chatCfg       config.Chat
	logger        *logger.Logger
}

func NewMessageService(
	messages repository.MessageRepository,
	conversations ConversationService,
	reads ReadService,
	objects storage.ObjectStore,
	chatCfg config.Chat,
	log *logger.Logger,
) MessageService {
	return &messageService{
		messages:      messages,
		conversations: conversations,
		reads:         reads,
		objects:       objects,
		chatCfg:       chatCfg,
		logger:        log.With("component", "message-service"),
	}
}

func (s *messageService) Send(params SendParams) (*entity.Message, error) {
	msg, err := s.prepare(params, false)
	if err != nil {
		return nil, err
	}
	if err := s.messages.CreateWithPreview(msg, s.preview(msg)); err != nil {
		s.logger.Error("message insert failed", "conversation", params.ConversationID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	return msg, nil
}

func (s *messageService) SendWithAttachment(params SendParams, att AttachmentParams) (*entity.Message, *entity.Attachment, error) {
	msg, err := s.prepare(params, true)
	if err != nil {
		return nil, nil, err
	}
	if att.Filename == "" || att.StorageKey == "" {
		return nil, nil, errors.InvalidArg("attachment needs a filename and storage key")
	}

	attachment := &entity.Attachment{
		ID:           uuid.New().String(),
		MessageID:    msg.ID,
		Type:         att.Type,
		Filename:     att.Filename,
		MimeType:     att.MimeType,
		Size:         att.Size,
		StorageKey:   att.StorageKey,
		URL:          att.URL,
		ThumbnailURL: att.ThumbnailURL,
		Width:        att.Width,
		Height:       att.Height,
		Duration:     att.Duration,
		UploadStatus: entity.UploadUploading,
		CreatedAt:    msg.CreatedAt,
	}
	if err := s.messages.CreateWithAttachment(msg, attachment, s.preview(msg)); err != nil {
		s.logger.Error("attachment message insert failed", "conversation", params.ConversationID, "err", err)
		return nil, nil, errors.Internal("internal server error")
	}
	resolveAttachmentURL(s.objects, attachment)
	msg.Attachments = []*entity.Attachment{attachment}
	return msg, attachment, nil
}

// prepare validates SendParams and builds the row without persisting it.
func (s *messageService) prepare(params SendParams, withAttachment bool) (*entity.Message, error) {
	if _, err := s.conversations.RequireActiveParticipant(params.ConversationID, params.SenderID); err != nil {
		return nil, err
	}

	content := strings.TrimSpace(params.Content)
	if content == "" && !withAttachment {
		return nil, errors.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.chatCfg.MaxMessageLength {
		return nil, errors.ErrContentTooLong
	}

	msgType := params.Type
	if msgType == "" {
		msgType = entity.MessageText
	}
	if msgType == entity.MessageSystem {
		return nil, errors.InvalidArg("system messages cannot be sent directly")
	}

	now := time.Now()
	if params.ReplyToID != "" {
		parent, err := s.messages.GetByID(params.ReplyToID)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.ErrInvalidReply
			}
			s.logger.Error("reply lookup failed", "id", params.ReplyToID, "err", err)
			return nil, errors.Internal("internal server error")
		}
		if parent.ConversationID != params.ConversationID || parent.Deleted || !parent.CreatedAt.Before(now) {
			return nil, errors.ErrInvalidReply
		}
	}

	return &entity.Message{
		ID:              uuid.New().String(),
		ConversationID:  params.ConversationID,
		SenderID:        params.SenderID,
		Content:         content,
		Type:            msgType,
		ReplyToID:       params.ReplyToID,
		ForwardedFromID: params.ForwardedFromID,
		CreatedAt:       now,
	}, nil
}

func (s *messageService) GetPage(conversationID, requesterID string, before time.Time, limit int) (*MessagePage, error) {
	if _, err := s.conversations.RequireActiveParticipant(conversationID, requesterID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.chatCfg.DefaultPageLimit
	}

	rows, err := s.messages.Page(conversationID, before, limit)
	if err != nil {
		s.logger.Error("page query failed", "conversation", conversationID, "err", err)
		return nil, errors.Internal("internal server error")
	}

	page := &MessagePage{HasMore: len(rows) == limit}
	if len(rows) > 0 {
		page.NextCursor = rows[len(rows)-1].CreatedAt
	}

	// Rows come back newest first; callers render oldest first.
	page.Messages = make([]*entity.Message, len(rows))
	for i, m := range rows {
		page.Messages[len(rows)-1-i] = m
	}
	if err := hydrateAttachments(s.messages, s.objects, page.Messages); err != nil {
		s.logger.Error("attachment load failed", "conversation", conversationID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	return page, nil
}

func (s *messageService) Stats(conversationID, requesterID string) (*MessageStats, error) {
	if _, err := s.conversations.RequireActiveParticipant(conversationID, requesterID); err != nil {
		return nil, err
	}

	total, err := s.messages.CountMessages(conversationID)
	if err != nil {
		s.logger.Error("stats query failed", "conversation", conversationID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	sent, err := s.messages.CountBySender(conversationID, requesterID)
	if err != nil {
		s.logger.Error("stats query failed", "conversation", conversationID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	unread, err := s.reads.UnreadCount(conversationID, requesterID)
	if err != nil {
		return nil, err
	}
	return &MessageStats{Total: total, Sent: sent, Unread: unread}, nil
}

func (s *messageService) Edit(messageID, userID, newContent string) error {
	msg, err := s.getMessage(messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return errors.ErrNotSender
	}
	if msg.Deleted {
		return errors.ErrAlreadyDeleted
	}
	if msg.Type != entity.MessageText {
		return errors.InvalidArg("only text messages can be edited")
	}

	content := strings.TrimSpace(newContent)
	if content == "" {
		return errors.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.chatCfg.MaxMessageLength {
		return errors.ErrContentTooLong
	}

	if err := s.messages.UpdateContent(messageID, content, time.Now()); err != nil {
		s.logger.Error("edit failed", "message", messageID, "err", err)
		return errors.Internal("internal server error")
	}
	return nil
}

func (s *messageService) Delete(messageID, userID string) error {
	msg, err := s.getMessage(messageID)
	if err != nil {
		return err
	}
	if msg.Deleted {
		return errors.ErrAlreadyDeleted
	}

	if msg.SenderID != userID {
		// Group moderators may remove other members' messages.
		participant, err := s.conversations.RequireActiveParticipant(msg.ConversationID, userID)
		if err != nil {
			return err
		}
		if !participant.CanModerate() {
			return errors.ErrCannotDelete
		}
	}

	if err := s.messages.Tombstone(messageID, time.Now()); err != nil {
		s.logger.Error("delete failed", "message", messageID, "err", err)
		return errors.Internal("internal server error")
	}
	return nil
}

func (s *messageService) Search(conversationID, requesterID, query string, limit int) ([]*entity.Message, error) {
	if _, err := s.conversations.RequireActiveParticipant(conversationID, requesterID); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.InvalidArg("search query cannot be empty")
	}
	if limit <= 0 {
		limit = s.chatCfg.DefaultPageLimit
	}
	results, err := s.messages.Search(conversationID, query, limit)
	if err != nil {
		s.logger.Error("search failed", "conversation", conversationID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	if err := hydrateAttachments(s.messages, s.objects, results); err != nil {
		s.logger.Error("attachment load failed", "conversation", conversationID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	return results, nil
}

func (s *messageService) CompleteUpload(attachmentID string, ok bool) error {
	status := entity.UploadCompleted
	if !ok {
		status = entity.UploadFailed
	}
	if err := s.messages.SetUploadStatus(attachmentID, status); err != nil {
		s.logger.Error("upload status update failed", "attachment", attachmentID, "err", err)
		return errors.Internal("internal server error")
	}
	return nil
}

// preview is the denormalised one-liner stored on the conversation for list
// rendering.
func (s *messageService) preview(msg *entity.Message) string {
	switch msg.Type {
	case entity.MessageImage:
		return "[image]"
	case entity.MessageFile:
		return "[file]"
	}
	runes := []rune(msg.Content)
	if len(runes) > s.chatCfg.PreviewLength {
		return string(runes[:s.chatCfg.PreviewLength]) + "..."
	}
	return msg.Content
}

// hydrateAttachments loads the attachments of the given messages in one
// query and resolves their URLs through the object store. Shared with the
// change feed so every read path returns the same shape.
func hydrateAttachments(repo repository.MessageRepository, store storage.ObjectStore, msgs []*entity.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, len(msgs))
	byID := make(map[string]*entity.Message, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
		byID[m.ID] = m
	}
	attachments, err := repo.ListAttachments(ids)
	if err != nil {
		return err
	}
	for _, a := range attachments {
		resolveAttachmentURL(store, a)
		if m := byID[a.MessageID]; m != nil {
			m.Attachments = append(m.Attachments, a)
		}
	}
	return nil
}

func resolveAttachmentURL(store storage.ObjectStore, a *entity.Attachment) {
	if a.URL == "" && a.StorageKey != "" {
		a.URL = store.URL(a.StorageKey)
	}
}

func (s *messageService) getMessage(messageID string) (*entity.Message, error) {
	msg, err := s.messages.GetByID(messageID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrMessageNotFound
		}
		s.logger.Error("message lookup failed", "id", messageID, "err", err)
		return nil, errors.Internal("internal server error")
	}
	return msg, nil
}
