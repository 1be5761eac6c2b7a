// Package auth provides authentication and authorization functionality.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/collabhub/collabhub/internal/models"
)

// Access tokens are issued by and for the CollabHub API only.
const (
	tokenIssuer   = "collabhub"
	tokenAudience = "collabhub-api"
)

// ErrTokenExpired is returned by ValidateToken for a well-formed token past its expiry.
var ErrTokenExpired = errors.New("access token expired")

// Claims is the payload of a CollabHub access token. Subject and UserID both
// carry the user ID; handlers read UserID.
type Claims struct {
	jwt.RegisteredClaims
	UserID string        `json:"uid"`
	Name   string        `json:"name"`
	Domain models.Domain `json:"domain,omitempty"`
	Role   models.Role   `json:"role"`
}

// JWTService signs and verifies HS256 access tokens.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewJWTService creates a service that issues tokens valid for ttl.
func NewJWTService(secret []byte, ttl time.Duration) *JWTService {
	return &JWTService{
		secret: secret,
		ttl:    ttl,
		issuer: tokenIssuer,
		now:    time.Now,
	}
}

// GenerateToken issues an access token for user. Each token gets its own ID.
func (s *JWTService) GenerateToken(user *models.User) (string, error) {
	now := s.now()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID: user.ID,
		Name:   user.Name,
		Domain: user.Domain,
		Role:   user.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, issuer, audience and expiry and returns
// the claims. Expired tokens yield ErrTokenExpired.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("parse token: %w", err)
	}

	if claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, fmt.Errorf("invalid subject")
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		return nil, fmt.Errorf("invalid token id")
	}
	return claims, nil
}

// TTL returns the token time-to-live duration.
func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// TTLSeconds returns the token TTL in seconds, as reported in expires_in.
func (s *JWTService) TTLSeconds() int {
	return int(s.ttl.Seconds())
}
