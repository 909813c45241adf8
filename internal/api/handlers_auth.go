package api

import (
	"net/http"
	"time"

	"github.com/ayerhssb/mcpSystem/internal/auth"
	"github.com/ayerhssb/mcpSystem/internal/domain"
)

func (h *Handlers) setSessionCookie(w http.ResponseWriter, session *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(h.tokens.TTL().Seconds()),
	})
}

// RegisterHandler creates an MCP account with its wallet and signs it in.
func (h *Handlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.auth.Register(r.Context(), req)
	if err != nil {
		h.fail(w, "register", err)
		return
	}
	h.setSessionCookie(w, session)
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.auth.Login(r.Context(), req)
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	h.setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, session)
}

// LogoutHandler expires the session cookie. Bearer tokens stay valid until they expire.
func (h *Handlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// CheckAuthHandler only runs behind AuthMiddleware, so reaching it means the session is valid.
func (h *Handlers) CheckAuthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"authenticated": true})
}

func (h *Handlers) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	user, err := h.auth.Profile(r.Context(), userID)
	if err != nil {
		h.fail(w, "get_profile", err, "user_id", userID)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handlers) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req domain.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.auth.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		h.fail(w, "update_profile", err, "user_id", userID)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
