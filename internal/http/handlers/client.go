package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/loyaltix/server/internal/middleware"
	"github.com/loyaltix/server/internal/model"
	"github.com/loyaltix/server/internal/repo"
	"github.com/rs/zerolog"
)

// ClientHandler serves the mobile-realm loyalty profile endpoints.
type ClientHandler struct {
	Clients    repo.ClientRepo
	Businesses repo.BusinessRepo
	News       repo.NewsRepo
	Log        zerolog.Logger
}

type clientResponse struct {
	ID        uuid.UUID `json:"id"`
	Phone     string    `json:"phone"`
	Business  string    `json:"business_code"`
	FirstName string    `json:"first_name"`
	LastName  *string   `json:"last_name"`
	Bonuses   float64   `json:"bonuses"`
	QRCode    string    `json:"qr_code"`
	IsStaff   bool      `json:"is_staff"`
	CreatedAt time.Time `json:"created_at"`
}

func toClientResponse(c model.Client, phone string) clientResponse {
	return clientResponse{
		ID:        c.ID,
		Phone:     phone,
		Business:  c.BusinessCode,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Bonuses:   c.Bonuses,
		QRCode:    c.QRCode,
		IsStaff:   c.IsStaff,
		CreatedAt: c.CreatedAt,
	}
}

func (h *ClientHandler) currentClient(r *http.Request) (model.User, model.Client, error) {
	user, _ := middleware.UserFromContext(r.Context())
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return model.User{}, model.Client{}, errors.New("missing claims")
	}
	client, err := h.Clients.GetByUserAndBusiness(r.Context(), user.ID, claims.Business)
	if err != nil {
		return model.User{}, model.Client{}, err
	}
	return user, client, nil
}

// HandleGetProfile returns the caller's loyalty profile in the current
// business.
func (h *ClientHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, client, err := h.currentClient(r)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			RespondError(w, http.StatusNotFound, "Client not found")
			return
		}
		h.Log.Error().Err(err).Msg("get profile failed")
		RespondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	RespondJSON(w, http.StatusOK, toClientResponse(client, user.Phone))
}

type updateProfileRequest struct {
	FirstName string  `json:"first_name"`
	LastName  *string `json:"last_name,omitempty"`
}

// HandleUpdateProfile updates the caller's display name.
func (h *ClientHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FirstName == "" {
		RespondError(w, http.StatusBadRequest, "First name is required")
		return
	}

	user, client, err := h.currentClient(r)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			RespondError(w, http.StatusNotFound, "Client not found")
			return
		}
		h.Log.Error().Err(err).Msg("update profile failed")
		RespondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	updated, err := h.Clients.UpdateNames(r.Context(), client.ID, req.FirstName, req.LastName)
	if err != nil {
		h.Log.Error().Err(err).Msg("update profile failed")
		RespondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	RespondJSON(w, http.StatusOK, toClientResponse(updated, user.Phone))
}

type businessResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// HandleGetBusiness returns the business the token is scoped to.
func (h *ClientHandler) HandleGetBusiness(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		RespondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	business, err := h.Businesses.GetByCode(r.Context(), claims.Business)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			RespondError(w, http.StatusNotFound, "Business not found")
			return
		}
		h.Log.Error().Err(err).Msg("get business failed")
		RespondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	RespondJSON(w, http.StatusOK, businessResponse{Code: business.Code, Name: business.Name})
}

type newsItem struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ContentType string    `json:"content_type"`
	Views       int       `json:"views"`
	CreatedAt   time.Time `json:"created_at"`
}

// HandleNews lists the business news feed, newest first.
func (h *ClientHandler) HandleNews(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		RespondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	items, err := h.News.ListByBusiness(r.Context(), claims.Business, limit)
	if err != nil {
		h.Log.Error().Err(err).Msg("list news failed")
		RespondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]newsItem, 0, len(items))
	for _, n := range items {
		out = append(out, newsItem{
			ID:          n.ID,
			Title:       n.Title,
			Content:     n.Content,
			ContentType: n.ContentType,
			Views:       n.Views,
			CreatedAt:   n.CreatedAt,
		})
	}
	RespondJSON(w, http.StatusOK, out)
}
