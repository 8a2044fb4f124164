package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/recipe-share/internal/service"
)

// UserHandler serves accounts, avatars and subscriptions.
//
//	GET    /api/users/                 → paginated list
//	POST   /api/users/                 → register
//	GET    /api/users/{id}/            → one user
//	GET    /api/users/me/              → the viewer (auth)
//	PUT    /api/users/me/avatar/       → upload avatar (auth)
//	DELETE /api/users/me/avatar/       → remove avatar (auth)
//	POST   /api/users/set_password/    → change password (auth)
//	GET    /api/users/subscriptions/   → followed authors (auth)
//	POST   /api/users/{id}/subscribe/  → follow (auth)
//	DELETE /api/users/{id}/subscribe/  → unfollow (auth)
type UserHandler struct {
	users     *service.UserService
	relations *service.RelationService
	pageSize  int
	logger    *slog.Logger
}

func NewUserHandler(
	users *service.UserService,
	relations *service.RelationService,
	pageSize int,
	logger *slog.Logger,
) *UserHandler {
	return &UserHandler{
		users:     users,
		relations: relations,
		pageSize:  pageSize,
		logger:    logger,
	}
}

type registerRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newUserResponse(user, h.users.ImageURL))
}

func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p := parsePaging(r, h.pageSize)
	users, total, err := h.users.List(r.Context(), viewerID(r), p.options())
	if err != nil {
		writeError(w, err)
		return
	}

	results := make([]UserResponse, len(users))
	for i := range users {
		results[i] = newUserResponse(&users[i], h.users.ImageURL)
	}
	writeJSON(w, http.StatusOK, newPage(r, p, total, results))
}

func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := h.users.Get(r.Context(), id, viewerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user, h.users.ImageURL))
}

func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Me(r.Context(), viewerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user, h.users.ImageURL))
}

type avatarRequest struct {
	Avatar string `json:"avatar"`
}

type avatarResponse struct {
	Avatar string `json:"avatar"`
}

func (h *UserHandler) HandleSetAvatar(w http.ResponseWriter, r *http.Request) {
	var req avatarRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	key, err := h.users.SetAvatar(r.Context(), viewerID(r), req.Avatar)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, avatarResponse{Avatar: h.users.ImageURL(key)})
}

func (h *UserHandler) HandleDeleteAvatar(w http.ResponseWriter, r *http.Request) {
	if err := h.users.DeleteAvatar(r.Context(), viewerID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setPasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *UserHandler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req setPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.users.SetPassword(r.Context(), viewerID(r), req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== SUBSCRIPTIONS =====

func (h *UserHandler) HandleSubscriptions(w http.ResponseWriter, r *http.Request) {
	p := parsePaging(r, h.pageSize)
	authors, total, err := h.relations.Subscriptions(r.Context(), viewerID(r), p.options(), recipesLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}

	results := make([]AuthorResponse, len(authors))
	for i := range authors {
		results[i] = newAuthorResponse(&authors[i], h.users.ImageURL)
	}
	writeJSON(w, http.StatusOK, newPage(r, p, total, results))
}

func (h *UserHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	authorID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	author, err := h.relations.Subscribe(r.Context(), viewerID(r), authorID, recipesLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAuthorResponse(author, h.users.ImageURL))
}

func (h *UserHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	authorID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.relations.Unsubscribe(r.Context(), viewerID(r), authorID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// recipesLimit reads ?recipes_limit=. Missing, non-numeric and negative
// values mean "all recipes".
func recipesLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("recipes_limit"))
	if err != nil || n < 0 {
		return -1
	}
	return n
}
