package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/loyaltix/server/internal/middleware"
	"github.com/loyaltix/server/internal/repo"
	"github.com/rs/zerolog"
)

// BusinessHandler serves the web-realm endpoints for business owners and
// staff.
type BusinessHandler struct {
	Businesses repo.BusinessRepo
	Clients    repo.ClientRepo
	Log        zerolog.Logger
}

type ownerResponse struct {
	ID       uuid.UUID `json:"id"`
	Phone    string    `json:"phone"`
	IsAdmin  bool      `json:"is_admin"`
	Business string    `json:"business"`
}

// HandleGetOwner returns the authenticated owner account.
func (h *BusinessHandler) HandleGetOwner(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		RespondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}
	RespondJSON(w, http.StatusOK, ownerResponse{
		ID:       user.ID,
		Phone:    user.Phone,
		IsAdmin:  user.IsAdmin,
		Business: claims.Business,
	})
}

type clientRow struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  *string   `json:"last_name"`
	Bonuses   float64   `json:"bonuses"`
	IsStaff   bool      `json:"is_staff"`
	CreatedAt time.Time `json:"created_at"`
}

// HandleListClients lists the clients registered in the business.
func (h *BusinessHandler) HandleListClients(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		RespondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	clients, err := h.Clients.ListByBusiness(r.Context(), claims.Business)
	if err != nil {
		h.Log.Error().Err(err).Msg("list clients failed")
		RespondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	out := make([]clientRow, 0, len(clients))
	for _, c := range clients {
		out = append(out, clientRow{
			ID:        c.ID,
			FirstName: c.FirstName,
			LastName:  c.LastName,
			Bonuses:   c.Bonuses,
			IsStaff:   c.IsStaff,
			CreatedAt: c.CreatedAt,
		})
	}
	RespondJSON(w, http.StatusOK, out)
}

type adjustBonusesRequest struct {
	Amount float64 `json:"amount"`
	Reason *string `json:"reason,omitempty"`
}

type adjustBonusesResponse struct {
	ID      uuid.UUID `json:"id"`
	Bonuses float64   `json:"bonuses"`
}

// HandleAdjustBonuses credits or debits a client's loyalty points and logs
// the movement.
func (h *BusinessHandler) HandleAdjustBonuses(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		RespondError(w, http.StatusUnauthorized, "Authorization required")
		return
	}

	clientID, err := uuid.Parse(chi.URLParam(r, "clientID"))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid client id")
		return
	}

	var req adjustBonusesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Amount == 0 {
		RespondError(w, http.StatusBadRequest, "Amount must be non-zero")
		return
	}

	client, err := h.Clients.AdjustBonuses(r.Context(), clientID, claims.Business, req.Amount, req.Reason)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			RespondError(w, http.StatusNotFound, "Client not found")
			return
		}
		h.Log.Error().Err(err).Msg("adjust bonuses failed")
		RespondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	RespondJSON(w, http.StatusOK, adjustBonusesResponse{ID: client.ID, Bonuses: client.Bonuses})
}
