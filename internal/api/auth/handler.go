package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/collabhub/collabhub/internal/api/validate"
	"github.com/collabhub/collabhub/internal/logger"
	"github.com/collabhub/collabhub/internal/metrics"
	"github.com/collabhub/collabhub/internal/models"
	"github.com/collabhub/collabhub/internal/storage"
)

// Mailer delivers password reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, name, link string) error
}

// ErrMailThrottled is returned by a Mailer that refuses to send more mail
// to a recipient for now.
var ErrMailThrottled = errors.New("too many emails for recipient")

// Options holds the handler settings that have defaults.
type Options struct {
	RefreshTTL time.Duration
	BcryptCost int
	// ResetURL is the frontend page that accepts a reset token as its last path segment.
	ResetURL string
	Mailer   Mailer
}

// Handler handles authentication endpoints.
type Handler struct {
	storage      storage.Storage
	jwtService   *JWTService
	tokenService *TokenService
	lockout      LockoutStore
	mailer       Mailer
	bcryptCost   int
	resetURL     string
}

// NewHandler creates a new auth handler.
func NewHandler(store storage.Storage, jwt *JWTService, lockout LockoutStore, opts Options) *Handler {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = DefaultBcryptCost
	}
	if opts.ResetURL == "" {
		opts.ResetURL = "http://localhost:3000/reset-password"
	}
	return &Handler{
		storage:      store,
		jwtService:   jwt,
		tokenService: NewTokenService(store, opts.RefreshTTL),
		lockout:      lockout,
		mailer:       opts.Mailer,
		bcryptCost:   opts.BcryptCost,
		resetURL:     strings.TrimRight(opts.ResetURL, "/"),
	}
}

// Tokens exposes the refresh token service to other handlers.
func (h *Handler) Tokens() *TokenService {
	return h.tokenService
}

// Response helpers (local to avoid import cycle with api package)

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

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}}); err != nil {
		logger.Errorf("json encode error: %v", err)
	}
}

func jsonStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		logger.Errorf("json encode error: %v", err)
	}
}

func jsonOK(w http.ResponseWriter, data any) {
	jsonStatus(w, http.StatusOK, data)
}

func jsonCreated(w http.ResponseWriter, data any) {
	jsonStatus(w, http.StatusCreated, data)
}

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	Message      string       `json:"message,omitempty"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
	TokenType    string       `json:"token_type"`
	User         *models.User `json:"user,omitempty"`
}

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// Error codes and messages
const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeUnauthorized     = "UNAUTHORIZED"
	errCodeNotFound         = "NOT_FOUND"
	errCodeConflict         = "CONFLICT"
	errCodeRateLimited      = "RATE_LIMITED"
	errCodeAccountLocked    = "ACCOUNT_LOCKED"
	errCodeInternalError    = "INTERNAL_ERROR"

	msgInternalError = "internal server error"
)

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Name     string `json:"name" validate:"notblank,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	Domain   string `json:"domain" validate:"required,domain"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest is the request body for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest is the request body for logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ForgotPasswordRequest is the request body for requesting a reset link.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the request body for redeeming a reset link.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Register creates an account and signs the new user in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	req.Email = models.NormalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	if err := ValidatePasswordOrError(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}
	domain, _ := models.ParseDomain(req.Domain)

	ctx := r.Context()
	existing, err := h.storage.Users().GetByEmail(ctx, req.Email)
	if err != nil {
		logger.Errorf("register error: get user: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, msgInternalError)
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, errCodeConflict, "Email already registered")
		return
	}

	hash, err := HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		logger.Errorf("register error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, msgInternalError)
		return
	}

	user := models.NewUser(strings.TrimSpace(req.Name), req.Email, domain)
	user.ID = uuid.New().String()
	user.PasswordHash = hash

	if err := h.storage.Users().Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			jsonError(w, http.StatusConflict, errCodeConflict, "Email already registered")
			return
		}
		logger.Errorf("register error: create user: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, msgInternalError)
		return
	}

	resp, err := h.issueTokens(ctx, user)
	if err != nil {
		logger.Errorf("register error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, msgInternalError)
		return
	}
	resp.Message = "User registered successfully"
	resp.User = user

	logger.Infof("register success: user %s (%s)", user.ID, user.Email)
	jsonCreated(w, resp)
}

// Login handles user login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	email := models.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "email and password required")
		return
	}

	ctx := r.Context()

	locked, err := h.lockout.IsLocked(ctx, email)
	if err != nil {
		logger.Warnf("login: lockout check for %s: %v", email, err)
	}
	if locked {
		remaining, _ := h.lockout.RemainingLockoutTime(ctx, email)
		logger.Warnf("login blocked: account %s locked for %v", email, remaining)
		metrics.AuthAttemptsTotal.WithLabelValues("locked").Inc()
		jsonError(w, http.StatusTooManyRequests, errCodeAccountLocked, "account temporarily locked due to too many failed attempts")
		return
	}

	user, err := h.storage.Users().GetByEmail(ctx, email)
	if err != nil {
		logger.Errorf("login error: get user: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, msgInternalError)
		return
	}
	if user == nil || !CheckPassword(user.PasswordHash, req.Password) {
		h.recordFailure(ctx, email)
		logger.Infof("login failed: invalid credentials for %s", email)
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		jsonError(w, http.StatusUnauthorized, errCodeUnauthorized, "Invalid email or password")
		return
	}

	if err := h.lockout.ClearFailures(ctx, email); err != nil {
		logger.Warnf("login: clear lockout for %s: %v", email, err)
	}

	resp, err := h.issueTokens(ctx, user)
	if err != nil {
		logger.Errorf("login error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, msgInternalError)
		return
	}
	resp.Message = "Login successful"
	resp.User = user

	logger.Infof("login success: user %s", user.ID)
	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	jsonOK(w, resp)
}

func (h *Handler) recordFailure(ctx context.Context, email string) {
	locked, err := h.lockout.RecordFailure(ctx, email)
	if err != nil {
		logger.Warnf("login: record failure for %s: %v", email, err)
		return
	}
	if locked {
		metrics.AuthLockoutsTotal.Inc()
	}
}

// Refresh handles token refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if req.RefreshToken == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "refresh_token required")
		return
	}

	ctx := r.Context()

	user, err := h.tokenService.ValidateRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		logger.Infof("refresh failed: %v", err)
		jsonError(w, http.StatusUnauthorized, errCodeUnauthorized, "Invalid or expired token")
		return
	}

	accessToken, err := h.jwtService.GenerateToken(user)
	if err != nil {
		logger.Errorf("refresh error: generate access token: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, msgInternalError)
		return
	}

	// Rotate refresh token (revoke old, create new)
	newRefreshToken, err := h.tokenService.RotateRefreshToken(ctx, req.RefreshToken, user.ID)
	if err != nil {
		logger.Errorf("refresh error: rotate refresh token: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, msgInternalError)
		return
	}
	metrics.AuthTokensIssued.WithLabelValues("access").Inc()
	metrics.AuthTokensIssued.WithLabelValues("refresh").Inc()

	logger.Debugf("token refresh success: user %s", user.ID)

	jsonOK(w, &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		ExpiresIn:    h.jwtService.TTLSeconds(),
		TokenType:    "Bearer",
	})
}

// Logout handles user logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if req.RefreshToken == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "refresh_token required")
		return
	}

	// Already-revoked tokens are not an error.
	if err := h.tokenService.RevokeRefreshToken(r.Context(), req.RefreshToken); err != nil {
		logger.Warnf("logout: revoke token: %v", err)
	}

	jsonNoContent(w)
}

// ForgotPassword mails a single-use reset link to a registered address.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	email := models.NormalizeEmail(req.Email)
	if email == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "email is required")
		return
	}

	ctx := r.Context()
	user, err := h.storage.Users().GetByEmail(ctx, email)
	if err != nil {
		logger.Errorf("forgot password error: get user: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, msgInternalError)
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "Email not found in our system")
		return
	}

	token, plain, err := h.tokenService.IssueResetToken(ctx, user.ID)
	if err != nil {
		logger.Errorf("forgot password error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, msgInternalError)
		return
	}

	link := h.resetURL + "/" + url.PathEscape(plain)
	if h.mailer == nil {
		logger.Warnf("forgot password: no mailer configured, reset link for %s not sent", user.Email)
	} else if err := h.mailer.SendPasswordReset(ctx, user.Email, user.Name, link); err != nil {
		// Undelivered: earlier links must keep working.
		if derr := h.tokenService.DiscardResetToken(ctx, token); derr != nil {
			logger.Warnf("forgot password: discard undelivered token for user %s: %v", user.ID, derr)
		}
		if errors.Is(err, ErrMailThrottled) {
			jsonError(w, http.StatusTooManyRequests, errCodeRateLimited, "too many reset requests, try again later")
			return
		}
		logger.Errorf("forgot password error: send mail to %s: %v", user.Email, err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "Error sending email")
		return
	}

	if err := h.tokenService.CommitResetToken(ctx, token); err != nil {
		logger.Warnf("forgot password: %v", err)
	}

	logger.Infof("password reset requested: user %s", user.ID)
	jsonOK(w, MessageResponse{Message: "Password reset link sent to your email"})
}

// ResetPassword redeems a reset token and sets a new password.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	if req.Token == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "token is required")
		return
	}
	if err := ValidatePasswordOrError(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()
	user, err := h.tokenService.RedeemResetToken(ctx, req.Token)
	if err != nil {
		logger.Infof("reset password failed: %v", err)
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "Invalid or expired reset token")
		return
	}

	hash, err := HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		logger.Errorf("reset password error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, msgInternalError)
		return
	}

	user.PasswordHash = hash
	user.UpdatedAt = time.Now().UTC()
	if err := h.storage.Users().Update(ctx, user); err != nil {
		logger.Errorf("reset password error: update user: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, msgInternalError)
		return
	}

	if err := h.tokenService.RevokeAllUserTokens(ctx, user.ID); err != nil {
		logger.Warnf("reset password: revoke sessions for %s: %v", user.ID, err)
	}
	if err := h.lockout.ClearFailures(ctx, user.Email); err != nil {
		logger.Warnf("reset password: clear lockout for %s: %v", user.Email, err)
	}

	logger.Infof("password reset: user %s", user.ID)
	jsonOK(w, MessageResponse{Message: "Password has been reset"})
}

func (h *Handler) issueTokens(ctx context.Context, user *models.User) (*AuthResponse, error) {
	accessToken, err := h.jwtService.GenerateToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := h.tokenService.CreateRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	metrics.AuthTokensIssued.WithLabelValues("access").Inc()
	metrics.AuthTokensIssued.WithLabelValues("refresh").Inc()

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    h.jwtService.TTLSeconds(),
		TokenType:    "Bearer",
	}, nil
}
