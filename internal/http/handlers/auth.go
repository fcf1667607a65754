package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/loyaltix/server/internal/auth"
	"github.com/loyaltix/server/internal/middleware"
	"github.com/loyaltix/server/internal/model"
	"github.com/loyaltix/server/internal/phone"
	"github.com/rs/zerolog"
)

// AuthHandler serves OTP issue and confirm plus the password login for
// business owners.
type AuthHandler struct {
	Issuer *auth.Issuer
	Svc    *auth.Service
	Log    zerolog.Logger
}

type authRequest struct {
	Phone    string `json:"phone"`
	Business string `json:"business,omitempty"`
	Realm    string `json:"realm,omitempty"`
	Password string `json:"password,omitempty"`
}

type confirmRequest struct {
	Phone    string `json:"phone"`
	OTP      string `json:"otp"`
	Business string `json:"business,omitempty"`
	Realm    string `json:"realm,omitempty"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Business     string `json:"business,omitempty"`
}

// businessCode prefers the request body over the X-Business-ID header.
func businessCode(ctx context.Context, body string) string {
	if body != "" {
		return body
	}
	if code, ok := middleware.BusinessFromContext(ctx); ok {
		return code
	}
	return ""
}

func requestMeta(r *http.Request) auth.RequestMeta {
	return auth.RequestMeta{IP: r.RemoteAddr, UserAgent: r.UserAgent()}
}

// HandleAuth starts authentication. For the OTP flow it validates the phone
// number and dispatches a code; for the web realm with a password it performs
// an owner login directly.
func (h *AuthHandler) HandleAuth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	number, err := phone.Normalize(req.Phone)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid phone number")
		return
	}

	realm, err := model.ParseRealm(req.Realm)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Unknown realm")
		return
	}

	if realm == model.RealmWeb && req.Password != "" {
		business, pair, err := h.passwordLogin(r, number, req.Password)
		if err != nil {
			RespondError(w, http.StatusUnauthorized, "Invalid phone number or password")
			return
		}
		RespondJSON(w, http.StatusOK, loginResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			Business:     business,
		})
		return
	}

	// The tenant is optional at issuance: a phone-only request gets a code
	// scoped to the empty tenant. Mobile confirm still requires one, since
	// that is where the client profile is created.
	business := businessCode(r.Context(), req.Business)

	if err := h.Issuer.Send(r.Context(), number, business, realm); err != nil {
		switch {
		case errors.Is(err, auth.ErrSMSCooldown):
			RespondError(w, http.StatusServiceUnavailable, "Too many SMS")
		default:
			h.Log.Error().Err(err).Str("phone", phone.Mask(number)).Msg("otp send failed")
			RespondError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	RespondSuccess(w, "OTP sent successfully.")
}

func (h *AuthHandler) passwordLogin(r *http.Request, number, password string) (string, *auth.TokenPair, error) {
	_, business, pair, err := h.Svc.PasswordLogin(r.Context(), number, password, requestMeta(r))
	if err != nil {
		return "", nil, err
	}
	return business.Code, pair, nil
}

// HandleConfirm exchanges a valid OTP for a realm-scoped token pair. Missing,
// expired, mismatched and already-used codes are indistinguishable to the
// caller.
func (h *AuthHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	number, err := phone.Normalize(req.Phone)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid phone number")
		return
	}

	realm, err := model.ParseRealm(req.Realm)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Unknown realm")
		return
	}

	business := businessCode(r.Context(), req.Business)

	pair, err := h.Svc.Confirm(r.Context(), number, req.OTP, business, realm, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrOTPExpired):
			RespondError(w, http.StatusBadRequest, "OTP code is expired")
		case errors.Is(err, auth.ErrBusinessRequired):
			RespondError(w, http.StatusBadRequest, "Business is required")
		default:
			h.Log.Error().Err(err).Str("phone", phone.Mask(number)).Msg("otp confirm failed")
			RespondError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	RespondJSON(w, http.StatusOK, loginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Business:     business,
	})
}
