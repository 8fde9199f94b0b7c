package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/roadpoints/internal/auth"
	"github.com/dukerupert/roadpoints/internal/model"
	"github.com/dukerupert/roadpoints/internal/store"
)

type AuthHandler struct {
	userStore    *store.UserStore
	revokedStore *store.RevokedTokenStore
	issuer       *auth.Issuer
	logger       *slog.Logger
}

func NewAuthHandler(us *store.UserStore, rs *store.RevokedTokenStore, issuer *auth.Issuer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{userStore: us, revokedStore: rs, issuer: issuer, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresAt   string     `json:"expires_at"`
	UserID      int64      `json:"user_id"`
	Role        model.Role `json:"role"`
	SponsorID   *int64     `json:"sponsor_id,omitempty"`
}

// Login accepts a username or email address with a password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	login := strings.TrimSpace(req.Username)
	if login == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "username and password are required")
		return
	}

	var user *model.User
	var err error
	if strings.Contains(login, "@") {
		user, err = h.userStore.GetByEmail(r.Context(), login)
	} else {
		user, err = h.userStore.GetByUsername(r.Context(), login)
	}
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeMessage(w, http.StatusInternalServerError, "login failed")
		return
	}
	// Same response for unknown users and wrong passwords.
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, exp, err := h.issuer.Issue(user)
	if err != nil {
		h.logger.Error("issue token", "error", err, "user_id", user.ID)
		writeMessage(w, http.StatusInternalServerError, "login failed")
		return
	}

	h.logger.Info("user logged in", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   exp.UTC().Format(timeFormat),
		UserID:      user.ID,
		Role:        user.Role,
		SponsorID:   user.SponsorID,
	})
}

// Logout revokes the presented token until it would have expired anyway.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	_, ac, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.revokedStore.Revoke(r.Context(), ac.TokenID, ac.ExpiresAt); err != nil {
		h.logger.Error("revoke token", "error", err, "user_id", ac.UserID)
		writeMessage(w, http.StatusInternalServerError, "logout failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	_, ac, ok := caller(w, r)
	if !ok {
		return
	}
	user, err := h.userStore.GetByID(r.Context(), ac.UserID)
	if err != nil {
		h.logger.Error("get user", "error", err, "user_id", ac.UserID)
		writeMessage(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		writeMessage(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
