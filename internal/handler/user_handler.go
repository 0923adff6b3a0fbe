package handler

import (
	"net/http"

	"chatcore/internal/entity"
	"chatcore/internal/middleware"
	"chatcore/internal/service"
	"chatcore/pkg/errors"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
)

type UserHandler struct {
	store       *sessions.CookieStore
	userService service.UserService
}

func NewUserHandler(userService service.UserService, store *sessions.CookieStore) *UserHandler {
	return &UserHandler{store, userService}
}

// AttachSession binds the session cookie to an existing profile. Identity is
// assumed to have been established upstream.
func (h *UserHandler) AttachSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	profile, err := h.userService.GetProfile(body.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	session, _ := h.store.Get(r, middleware.SessionName)
	session.Values["user_id"] = profile.UserID
	sessions.Save(r, w)

	writeJSON(w, http.StatusOK, profile)
}

func (h *UserHandler) DetachSession(w http.ResponseWriter, r *http.Request) {
	session, _ := h.store.Get(r, middleware.SessionName)
	session.Options.MaxAge = -1
	sessions.Save(r, w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *UserHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID      string `json:"userId"`
		Handle      string `json:"handle"`
		DisplayName string `json:"displayName"`
		Avatar      string `json:"avatar"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	profile, err := h.userService.CreateProfile(body.UserID, body.Handle, body.DisplayName, body.Avatar)
	if err != nil {
		writeError(w, err)
		return
	}

	session, _ := h.store.Get(r, middleware.SessionName)
	session.Values["user_id"] = profile.UserID
	sessions.Save(r, w)

	writeJSON(w, http.StatusCreated, profile)
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	profile, err := h.userService.GetProfile(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	profile, err := h.userService.GetProfile(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *UserHandler) FindByHandle(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	handle := r.URL.Query().Get("handle")
	if handle == "" {
		writeError(w, errors.InvalidArg("handle is required"))
		return
	}
	profile, err := h.userService.FindByHandle(handle)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var body service.ProfileUpdate
	if !decodeBody(w, r, &body) {
		return
	}
	profile, err := h.userService.UpdateProfile(userID, body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *UserHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var body struct {
		Presence entity.Presence `json:"presence"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Presence == "" {
		body.Presence = entity.PresenceOnline
	}
	if err := h.userService.Heartbeat(userID, body.Presence); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
