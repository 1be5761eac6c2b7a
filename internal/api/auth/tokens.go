package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/collabhub/collabhub/internal/logger"
	"github.com/collabhub/collabhub/internal/models"
	"github.com/collabhub/collabhub/internal/storage"
)

// ResetTokenTTL is how long a mailed password reset link stays valid.
const ResetTokenTTL = time.Hour

// TokenService handles refresh token operations.
type TokenService struct {
	storage storage.Storage
	ttl     time.Duration
}

// NewTokenService creates a new token service.
func NewTokenService(store storage.Storage, ttl time.Duration) *TokenService {
	return &TokenService{
		storage: store,
		ttl:     ttl,
	}
}

// CreateRefreshToken creates and stores a new refresh token for the user.
// Returns the plaintext token to send to the client.
func (s *TokenService) CreateRefreshToken(ctx context.Context, userID string) (string, error) {
	token, plainToken, err := models.NewRefreshToken(userID, s.ttl)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}

	if err := s.storage.Tokens().Create(ctx, token); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}

	return plainToken, nil
}

// ValidateRefreshToken validates a refresh token and returns the associated user.
func (s *TokenService) ValidateRefreshToken(ctx context.Context, plainToken string) (*models.User, error) {
	tokenHash := models.HashToken(plainToken)

	token, err := s.storage.Tokens().GetByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	if token == nil {
		return nil, fmt.Errorf("token not found")
	}

	if !token.IsValid() {
		return nil, fmt.Errorf("token expired or revoked")
	}

	// Get user
	user, err := s.storage.Users().GetByID(ctx, token.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// RevokeRefreshToken revokes a refresh token.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, plainToken string) error {
	tokenHash := models.HashToken(plainToken)
	return s.storage.Tokens().RevokeByTokenHash(ctx, tokenHash)
}

// RevokeAllUserTokens revokes all refresh tokens for a user.
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID string) error {
	return s.storage.Tokens().RevokeAllForUser(ctx, userID)
}

// RotateRefreshToken revokes the old token and creates a new one.
// Returns the new plaintext token.
func (s *TokenService) RotateRefreshToken(ctx context.Context, oldPlainToken string, userID string) (string, error) {
	if err := s.RevokeRefreshToken(ctx, oldPlainToken); err != nil {
		logger.Warnf("rotate refresh token: revoke old token for user %s: %v", userID, err)
	}

	return s.CreateRefreshToken(ctx, userID)
}

// IssueResetToken stores a fresh reset token and returns it with its plaintext.
// Earlier tokens stay usable until CommitResetToken runs, so a link that was
// never delivered does not invalidate the last one that was.
func (s *TokenService) IssueResetToken(ctx context.Context, userID string) (*models.PasswordResetToken, string, error) {
	token, plainToken, err := models.NewPasswordResetToken(userID, ResetTokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.storage.ResetTokens().Create(ctx, token); err != nil {
		return nil, "", fmt.Errorf("store reset token: %w", err)
	}
	return token, plainToken, nil
}

// CommitResetToken makes token the owner's only reset token.
func (s *TokenService) CommitResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	if err := s.storage.ResetTokens().DeleteForUser(ctx, token.UserID, token.ID); err != nil {
		return fmt.Errorf("clear older reset tokens: %w", err)
	}
	return nil
}

// DiscardResetToken deletes a token whose link could not be delivered.
func (s *TokenService) DiscardResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	return s.storage.ResetTokens().Delete(ctx, token.ID)
}

// RedeemResetToken marks a reset token used and returns its owner.
// Expired, unknown and already-used tokens are rejected.
func (s *TokenService) RedeemResetToken(ctx context.Context, plainToken string) (*models.User, error) {
	token, err := s.storage.ResetTokens().GetByTokenHash(ctx, models.HashToken(plainToken))
	if err != nil {
		return nil, fmt.Errorf("lookup reset token: %w", err)
	}
	if token == nil || !token.IsUsable() {
		return nil, fmt.Errorf("reset token invalid or expired")
	}

	user, err := s.storage.Users().GetByID(ctx, token.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	if err := s.storage.ResetTokens().MarkUsed(ctx, token.ID); err != nil {
		return nil, fmt.Errorf("mark reset token used: %w", err)
	}
	return user, nil
}

// TTL returns the refresh token time-to-live.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}
