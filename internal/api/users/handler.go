package users

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/collabhub/collabhub/internal/api/auth"
	"github.com/collabhub/collabhub/internal/api/middleware"
	"github.com/collabhub/collabhub/internal/api/pagination"
	"github.com/collabhub/collabhub/internal/logger"
	"github.com/collabhub/collabhub/internal/models"
	"github.com/collabhub/collabhub/internal/storage"
)

// Response helpers (local to avoid import cycle)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type dataResponse struct {
	Data any `json:"data"`
}

// Error codes
const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeInternalError    = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}})
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func internalError(w http.ResponseWriter, op string, err error) {
	logger.Errorf("%s error: %v", op, err)
	jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
}

// ProfileResponse is the public view of another user.
type ProfileResponse struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email,omitempty"`
	Domain    models.Domain `json:"domain"`
	CreatedAt time.Time     `json:"created_at"`
}

// Handler handles user endpoints.
type Handler struct {
	storage    storage.Storage
	bcryptCost int
}

// NewHandler creates a new user handler.
func NewHandler(store storage.Storage, bcryptCost int) *Handler {
	return &Handler{storage: store, bcryptCost: bcryptCost}
}

// UpdateRequest is the request body for updating the current user's profile.
type UpdateRequest struct {
	Name   *string `json:"name,omitempty"`
	Domain *string `json:"domain,omitempty"`
}

// ChangePasswordRequest is the request body for changing password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// List returns one page of users (admin only).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.Parse(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, err.Error())
		return
	}

	users, total, err := h.storage.Users().List(r.Context(), page.PerPage, page.Offset())
	if err != nil {
		internalError(w, "list users", err)
		return
	}

	jsonOK(w, pagination.NewResponse(users, total, page))
}

// GetByID returns a user's public profile. Email is included for the user
// themselves and for admins.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "user id required")
		return
	}

	user, err := h.storage.Users().GetByID(r.Context(), userID)
	if err != nil {
		internalError(w, "get user", err)
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "User not found")
		return
	}

	resp := &ProfileResponse{
		ID:        user.ID,
		Name:      user.Name,
		Domain:    user.Domain,
		CreatedAt: user.CreatedAt,
	}
	if middleware.IsAdminOrSelf(r, user.ID) {
		resp.Email = user.Email
	}
	jsonOK(w, resp)
}

// GetCurrentUser returns the authenticated user with their project references.
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.storage.Users().GetByID(ctx, middleware.GetUserID(ctx))
	if err != nil {
		internalError(w, "get current user", err)
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "User not found")
		return
	}

	jsonOK(w, user)
}

// UpdateCurrentUser changes the authenticated user's name and/or domain.
func (h *Handler) UpdateCurrentUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	domain, err := ValidateUpdate(&req)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()
	user, err := h.storage.Users().GetByID(ctx, middleware.GetUserID(ctx))
	if err != nil {
		internalError(w, "update user", err)
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "User not found")
		return
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if domain != nil {
		user.Domain = *domain
	}
	user.UpdatedAt = time.Now().UTC()

	if err := h.storage.Users().Update(ctx, user); err != nil {
		internalError(w, "update user", err)
		return
	}

	logger.Infof("user updated: %s", user.ID)
	jsonOK(w, user)
}

// ChangePassword changes the current user's password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if req.CurrentPassword == "" {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "current_password is required")
		return
	}
	if err := auth.ValidatePasswordOrError(req.NewPassword); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	user, err := h.storage.Users().GetByID(ctx, userID)
	if err != nil {
		internalError(w, "change password", err)
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "User not found")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword, h.bcryptCost)
	if err != nil {
		internalError(w, "change password", err)
		return
	}

	user.PasswordHash = hash
	user.UpdatedAt = time.Now().UTC()

	if err := h.storage.Users().Update(ctx, user); err != nil {
		internalError(w, "change password", err)
		return
	}

	// Force re-login on other devices; the password is already changed.
	if err := h.storage.Tokens().RevokeAllForUser(ctx, userID); err != nil {
		logger.Warnf("change password: revoke tokens for %s: %v", userID, err)
	}

	logger.Infof("password changed: user %s", user.ID)

	jsonNoContent(w)
}
