package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MattHolloway/gatekeep/internal/auth"
	"github.com/MattHolloway/gatekeep/internal/models"
	"github.com/MattHolloway/gatekeep/internal/services"
	pkghttp "github.com/MattHolloway/gatekeep/pkg/http"
)

// AccountServiceInterface defines the interface for profile business logic
type AccountServiceInterface interface {
	GetProfile(ctx context.Context, accountID string) (*services.AccountResponse, error)
	UpdateProfile(ctx context.Context, accountID string, input services.UpdateProfileInput) (*services.AccountResponse, error)
}

// AccountHandler handles profile HTTP requests
type AccountHandler struct {
	service AccountServiceInterface
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

// UpdateProfileRequest represents the request body for profile updates.
// Absent fields are left unchanged.
type UpdateProfileRequest struct {
	Username  *string `json:"username" validate:"omitempty,min=4,max=20"`
	Password  *string `json:"password" validate:"omitempty,min=6"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
}

// GetProfile returns the profile of the account in the URL. Any authenticated
// session may read a profile; the projection never includes credentials.
func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		pkghttp.WriteBadRequest(w, "Account id is required")
		return
	}

	resp, err := h.service.GetProfile(r.Context(), accountID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateProfile applies a partial profile update. Only the account holder may
// update their own profile.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		pkghttp.WriteBadRequest(w, "Account id is required")
		return
	}

	claims := auth.GetSessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}
	if claims.AccountID != accountID {
		pkghttp.WriteUnauthorized(w, "Cannot modify another account")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.service.UpdateProfile(r.Context(), accountID, services.UpdateProfileInput{
		Username:  req.Username,
		Password:  req.Password,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidInput):
			pkghttp.WriteBadRequest(w, "Invalid profile fields")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteBadRequest(w, "Username is already taken")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
