package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"stockroom.app/internal/audit"
	"stockroom.app/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success   bool          `json:"success"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      auth.Identity `json:"user"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req, a.maxBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "Email and password required")
		return
	}

	sess, err := a.auth.Login(r.Context(), email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			_ = audit.LogEvent(r.Context(), audit.EventLoginFailed, map[string]any{
				"email":  strings.ToLower(email),
				"reason": loginFailureReason(err),
			})
			writeError(w, r, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		a.logger.Error("login failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "Login failed")
		return
	}

	_ = audit.LogEvent(r.Context(), audit.EventLoginSucceeded, map[string]any{
		"identity_id": sess.Identity.ID,
		"role_id":     sess.Identity.RoleID,
		"expires_at":  sess.Token.ExpiresAt.Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, loginResponse{
		Success:   true,
		Token:     sess.Token.Value,
		ExpiresAt: sess.Token.ExpiresAt,
		User:      sess.Identity,
	})
}

// loginFailureReason is for operators only; callers always see the same
// response.
func loginFailureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrNotFound):
		return "unknown_email"
	case errors.Is(err, auth.ErrInvalidCredential):
		return "password_mismatch"
	default:
		return "invalid_credentials"
	}
}
