package handler

import (
	"net/http"

	"chatcore/internal/service"

	"github.com/gorilla/mux"
)

type FeedHandler struct {
	feedService service.FeedService
}

func NewFeedHandler(feedService service.FeedService) *FeedHandler {
	return &FeedHandler{feedService}
}

// Poll is the single endpoint clients loop on. The request body carries the
// watermarks from the previous poll.
func (h *FeedHandler) Poll(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var marks service.Watermarks
	if !decodeBody(w, r, &marks) {
		return
	}

	set, err := h.feedService.Poll(userID, marks)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (h *FeedHandler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	since, err := queryTime(r, "since")
	if err != nil {
		writeError(w, err)
		return
	}
	messages, err := h.feedService.MessagesSince(mux.Vars(r)["id"], userID, since)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

func (h *FeedHandler) Receipts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	since, err := queryTime(r, "since")
	if err != nil {
		writeError(w, err)
		return
	}
	receipts, err := h.feedService.ReceiptsSince(mux.Vars(r)["id"], userID, since)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"receipts": receipts})
}

func (h *FeedHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	since, err := queryTime(r, "since")
	if err != nil {
		writeError(w, err)
		return
	}
	conversations, err := h.feedService.ConversationsSince(userID, since)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conversations": conversations})
}

func (h *FeedHandler) Presence(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	since, err := queryTime(r, "since")
	if err != nil {
		writeError(w, err)
		return
	}
	profiles, err := h.feedService.PresenceSince(userID, since)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"presence": profiles})
}

func (h *FeedHandler) FriendRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	since, err := queryTime(r, "since")
	if err != nil {
		writeError(w, err)
		return
	}
	requests, err := h.feedService.FriendRequestsSince(userID, since)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
}
