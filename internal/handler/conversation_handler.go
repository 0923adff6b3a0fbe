package handler

import (
	"net/http"

	"chatcore/internal/entity"
	"chatcore/internal/service"

	"github.com/gorilla/mux"
)

type ConversationHandler struct {
	conversationService service.ConversationService
}

func NewConversationHandler(conversationService service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService}
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var body struct {
		Type         entity.ConversationType `json:"type"`
		Participants []string                `json:"participants"`
		Name         string                  `json:"name"`
		Description  string                  `json:"description"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	id, err := h.conversationService.Create(service.CreateConversationParams{
		Type:         body.Type,
		Participants: body.Participants,
		Name:         body.Name,
		Description:  body.Description,
		CreatedBy:    userID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"conversationId": id})
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	detail, err := h.conversationService.GetByID(mux.Vars(r)["id"], userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	details, err := h.conversationService.ListForUser(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": details})
}

func (h *ConversationHandler) AddParticipants(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var body struct {
		UserIDs []string `json:"userIds"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	added, err := h.conversationService.AddParticipants(mux.Vars(r)["id"], body.UserIDs, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

func (h *ConversationHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.conversationService.Leave(mux.Vars(r)["id"], userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *ConversationHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var body service.SettingsUpdate
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.conversationService.UpdateSettings(mux.Vars(r)["id"], userID, body); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
