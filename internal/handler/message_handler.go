package handler

import (
	"net/http"

	"chatcore/internal/entity"
	"chatcore/internal/service"

	"github.com/gorilla/mux"
)

type MessageHandler struct {
	messageService service.MessageService
	readService    service.ReadService
}

func NewMessageHandler(messageService service.MessageService, readService service.ReadService) *MessageHandler {
	return &MessageHandler{messageService, readService}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var body struct {
		Content         string             `json:"content"`
		Type            entity.MessageType `json:"type"`
		ReplyToID       string             `json:"replyToId"`
		ForwardedFromID string             `json:"forwardedFromId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	msg, err := h.messageService.Send(service.SendParams{
		ConversationID:  mux.Vars(r)["id"],
		SenderID:        userID,
		Content:         body.Content,
		Type:            body.Type,
		ReplyToID:       body.ReplyToID,
		ForwardedFromID: body.ForwardedFromID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) SendWithAttachment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var body struct {
		Content    string                   `json:"content"`
		Type       entity.MessageType       `json:"type"`
		Attachment service.AttachmentParams `json:"attachment"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	msg, attachment, err := h.messageService.SendWithAttachment(service.SendParams{
		ConversationID: mux.Vars(r)["id"],
		SenderID:       userID,
		Content:        body.Content,
		Type:           body.Type,
	}, body.Attachment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    msg,
		"attachment": attachment,
	})
}

func (h *MessageHandler) Page(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	before, err := queryTime(r, "before")
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.messageService.GetPage(mux.Vars(r)["id"], userID, before, queryInt(r, "limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.messageService.Edit(mux.Vars(r)["id"], userID, body.Content); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.messageService.Delete(mux.Vars(r)["id"], userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *MessageHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	results, err := h.messageService.Search(mux.Vars(r)["id"], userID, r.URL.Query().Get("q"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": results})
}

func (h *MessageHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	stats, err := h.messageService.Stats(mux.Vars(r)["id"], userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var body struct {
		MessageIDs []string `json:"messageIds"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	marked, err := h.readService.MarkAsRead(mux.Vars(r)["id"], userID, body.MessageIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": marked})
}

func (h *MessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	count, err := h.readService.UnreadCount(mux.Vars(r)["id"], userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"unread": count})
}

func (h *MessageHandler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	var body struct {
		OK bool `json:"ok"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.messageService.CompleteUpload(mux.Vars(r)["attachmentId"], body.OK); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
