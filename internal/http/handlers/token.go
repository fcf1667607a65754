package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/loyaltix/server/internal/auth"
	"github.com/loyaltix/server/internal/middleware"
	"github.com/rs/zerolog"
)

// TokenHandler serves refresh, logout and session management.
type TokenHandler struct {
	Svc *auth.Service
	Log zerolog.Logger
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// HandleRefresh rotates a token pair. The presented refresh token and the
// access tokens minted from it stop working.
func (h *TokenHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	pair, err := h.Svc.Refresh(r.Context(), req.RefreshToken, requestMeta(r))
	if err != nil {
		if errors.Is(err, auth.ErrTokenInvalid) {
			RespondError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		h.Log.Error().Err(err).Msg("token refresh failed")
		RespondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	RespondJSON(w, http.StatusOK, loginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// HandleLogout revokes the current access token and its refresh token.
func (h *TokenHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		RespondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	if err := h.Svc.Logout(r.Context(), claims.JTI); err != nil {
		if errors.Is(err, auth.ErrTokenInvalid) {
			RespondError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		h.Log.Error().Err(err).Msg("logout failed")
		RespondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	RespondSuccess(w, "Logged out.")
}

type revokeAllResponse struct {
	Success bool `json:"success"`
	Revoked int  `json:"revoked"`
}

// HandleRevokeAll revokes every other session of the user in the current
// business; the session making the call stays alive.
func (h *TokenHandler) HandleRevokeAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		RespondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	n, err := h.Svc.RevokeAll(r.Context(), claims.UserID, claims.Business, claims.JTI)
	if err != nil {
		h.Log.Error().Err(err).Msg("revoke all failed")
		RespondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	RespondJSON(w, http.StatusOK, revokeAllResponse{Success: true, Revoked: n})
}

type sessionInfo struct {
	ID        uuid.UUID `json:"id"`
	IPAddr    string    `json:"ip_addr,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current"`
}

// HandleIssued lists the user's live sessions in the current business.
func (h *TokenHandler) HandleIssued(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		RespondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	records, err := h.Svc.IssuedTokens(r.Context(), claims.UserID, claims.Business)
	if err != nil {
		h.Log.Error().Err(err).Msg("list sessions failed")
		RespondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]sessionInfo, 0, len(records))
	for _, rec := range records {
		out = append(out, sessionInfo{
			ID:        rec.JTI,
			IPAddr:    rec.IPAddr,
			UserAgent: rec.UserAgent,
			IssuedAt:  rec.IssuedAt,
			ExpiresAt: rec.ExpiresAt,
			Current:   rec.JTI == claims.JTI,
		})
	}
	RespondJSON(w, http.StatusOK, out)
}
