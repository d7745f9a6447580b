package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/supportchat/internal/logger"
	"github.com/supportchat/internal/middleware"
	"github.com/supportchat/internal/model"
	"github.com/supportchat/internal/sessionstore"
	"github.com/supportchat/internal/store"
)

// AuthHandler issues and revokes session tokens. The rest of the system only
// ever consumes the resolved user id.
type AuthHandler struct {
	store    store.Store
	sessions sessionstore.Store
	secure   bool
}

func NewAuthHandler(st store.Store, sessions sessionstore.Store, secureCookies bool) *AuthHandler {
	return &AuthHandler{store: st, sessions: sessions, secure: secureCookies}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	if _, err := h.store.GetUserByUsername(r.Context(), req.Username); err == nil {
		writeError(w, http.StatusBadRequest, "Username already exists")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		logger.Errorf("register lookup %s: %v", req.Username, err)
		writeError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Errorf("register hash: %v", err)
		writeError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	user, err := h.store.CreateUser(r.Context(), model.InsertUser{
		Username:     req.Username,
		PasswordHash: string(hash),
	})
	if err != nil {
		logger.Errorf("register create %s: %v", req.Username, err)
		writeError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	if err := h.issueSession(w, r, user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, user.ToPublic())
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Errorf("login lookup %s: %v", req.Username, err)
		}
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	if err := h.issueSession(w, r, user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	writeJSON(w, http.StatusOK, user.ToPublic())
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ck, err := r.Cookie(middleware.SessionCookie); err == nil && ck.Value != "" {
		if err := h.sessions.Delete(r.Context(), ck.Value); err != nil {
			logger.Errorf("logout delete session: %v", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CurrentUser returns the authenticated account for the initial page load.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == 0 {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Errorf("current user %d: %v", userID, err)
		}
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, user.ToPublic())
}

func (h *AuthHandler) issueSession(w http.ResponseWriter, r *http.Request, userID int64) error {
	token := uuid.New().String()
	if err := h.sessions.Set(r.Context(), token, userID); err != nil {
		logger.Errorf("issue session user=%d: %v", userID, err)
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionstore.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
