package handler

import (
	"net/http"

	"chatcore/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
)

// NewRouter wires every endpoint. Session binding and profile creation are
// open; everything else goes through the identity middleware.
func NewRouter(
	store *sessions.CookieStore,
	users *UserHandler,
	friends *FriendHandler,
	conversations *ConversationHandler,
	messages *MessageHandler,
	feeds *FeedHandler,
) *mux.Router {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()

	auth := func(next func(w http.ResponseWriter, r *http.Request)) func(w http.ResponseWriter, r *http.Request) {
		return middleware.Identity(store, next)
	}

	// Session and profiles
	v1.HandleFunc("/session", users.AttachSession).Methods("POST")
	v1.HandleFunc("/session", users.DetachSession).Methods("DELETE")
	v1.HandleFunc("/users", users.CreateProfile).Methods("POST")
	v1.HandleFunc("/users/me", auth(users.GetMe)).Methods("GET")
	v1.HandleFunc("/users/me", auth(users.UpdateProfile)).Methods("PATCH")
	v1.HandleFunc("/users/me/heartbeat", auth(users.Heartbeat)).Methods("POST")
	v1.HandleFunc("/users/lookup", auth(users.FindByHandle)).Methods("GET")
	v1.HandleFunc("/users/{id}", auth(users.GetProfile)).Methods("GET")

	// Social graph
	v1.HandleFunc("/friends", auth(friends.ListFriends)).Methods("GET")
	v1.HandleFunc("/friends/{id}", auth(friends.RemoveFriend)).Methods("DELETE")
	v1.HandleFunc("/friends/{id}/relationship", auth(friends.Relationship)).Methods("GET")
	v1.HandleFunc("/friend-requests", auth(friends.SendRequest)).Methods("POST")
	v1.HandleFunc("/friend-requests", auth(friends.ListRequests)).Methods("GET")
	v1.HandleFunc("/friend-requests/{id}/respond", auth(friends.Respond)).Methods("POST")
	v1.HandleFunc("/friend-requests/{id}", auth(friends.Cancel)).Methods("DELETE")

	// Conversations
	v1.HandleFunc("/conversations", auth(conversations.Create)).Methods("POST")
	v1.HandleFunc("/conversations", auth(conversations.List)).Methods("GET")
	v1.HandleFunc("/conversations/{id}", auth(conversations.Get)).Methods("GET")
	v1.HandleFunc("/conversations/{id}/participants", auth(conversations.AddParticipants)).Methods("POST")
	v1.HandleFunc("/conversations/{id}/leave", auth(conversations.Leave)).Methods("POST")
	v1.HandleFunc("/conversations/{id}/settings", auth(conversations.UpdateSettings)).Methods("PATCH")

	// Message ledger
	v1.HandleFunc("/conversations/{id}/messages", auth(messages.Send)).Methods("POST")
	v1.HandleFunc("/conversations/{id}/messages", auth(messages.Page)).Methods("GET")
	v1.HandleFunc("/conversations/{id}/attachments", auth(messages.SendWithAttachment)).Methods("POST")
	v1.HandleFunc("/conversations/{id}/messages/search", auth(messages.Search)).Methods("GET")
	v1.HandleFunc("/conversations/{id}/messages/stats", auth(messages.Stats)).Methods("GET")
	v1.HandleFunc("/conversations/{id}/read", auth(messages.MarkRead)).Methods("POST")
	v1.HandleFunc("/conversations/{id}/unread", auth(messages.UnreadCount)).Methods("GET")
	v1.HandleFunc("/messages/{id}", auth(messages.Edit)).Methods("PATCH")
	v1.HandleFunc("/messages/{id}", auth(messages.Delete)).Methods("DELETE")
	v1.HandleFunc("/attachments/{attachmentId}/complete", auth(messages.CompleteUpload)).Methods("POST")

	// Change feeds
	v1.HandleFunc("/feed/poll", auth(feeds.Poll)).Methods("POST")
	v1.HandleFunc("/feed/conversations", auth(feeds.Conversations)).Methods("GET")
	v1.HandleFunc("/feed/presence", auth(feeds.Presence)).Methods("GET")
	v1.HandleFunc("/feed/friend-requests", auth(feeds.FriendRequests)).Methods("GET")
	v1.HandleFunc("/conversations/{id}/feed/messages", auth(feeds.Messages)).Methods("GET")
	v1.HandleFunc("/conversations/{id}/feed/receipts", auth(feeds.Receipts)).Methods("GET")

	return r
}
