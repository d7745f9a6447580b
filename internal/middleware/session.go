package middleware

import (
	"net/http"
	"strings"

	"github.com/supportchat/internal/logger"
	"github.com/supportchat/internal/sessionstore"
)

// SessionCookie is the name of the HttpOnly cookie carrying the session token.
const SessionCookie = "session"

// ResolveUserID extracts the session token from the request (cookie, then
// Authorization bearer) and resolves it against the session store. Returns 0
// when no valid identity is present.
func ResolveUserID(r *http.Request, sessions sessionstore.Store) int64 {
	token := ""
	if ck, err := r.Cookie(SessionCookie); err == nil {
		token = ck.Value
	}
	if token == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if token == "" {
		return 0
	}
	userID, err := sessions.Get(r.Context(), token)
	if err != nil {
		logger.Errorf("session lookup token=%s: %v", MaskToken(token), err)
		return 0
	}
	return userID
}

// SessionAuth rejects requests without a resolvable identity and puts the
// user id into the request context for handlers downstream.
func SessionAuth(sessions sessionstore.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := ResolveUserID(r, sessions)
			if userID == 0 {
				http.Error(w, `{"error":"Authentication required"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// MaskToken masks a session token for log lines.
func MaskToken(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "***"
}
