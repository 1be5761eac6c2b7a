// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"errors"

	"github.com/collabhub/collabhub/internal/models"
)

// Domain conflicts reported by repositories. Lookups that simply find nothing
// return (nil, nil) instead.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrIdeaNotFound      = errors.New("idea not found")
	ErrProjectNotFound   = errors.New("project not found")
	ErrAlreadyMember     = errors.New("already a member of this project")
	ErrNotMember         = errors.New("not a member of this project")
	ErrProjectClosed     = errors.New("project is completed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicate         = errors.New("duplicate record")
	ErrTokenUsed         = errors.New("token already used")
)

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error
	// EnsureAdminUser creates a bootstrap admin if no users exist, hashing its
	// password at bcryptCost.
	EnsureAdminUser(bcryptCost int) error

	Users() UserRepository
	Ideas() IdeaRepository
	Projects() ProjectRepository
	Tokens() TokenRepository
	ResetTokens() ResetTokenRepository
}

// UserRepository defines operations for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	// GetByID and GetByEmail fill JoinedProjects and CreatedProjects.
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetRefs resolves user IDs to their populated form; unknown IDs are omitted.
	GetRefs(ctx context.Context, ids []string) (map[string]*models.UserRef, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*models.User, int64, error)
	Count(ctx context.Context) (int64, error)
}

// IdeaFilter narrows idea listings. Zero values mean "no constraint".
type IdeaFilter struct {
	Domain    models.Domain
	CreatedBy string
	Limit     int
	Offset    int
}

// IdeaRepository defines operations for ideas. Reads populate Idea.Creator.
type IdeaRepository interface {
	Create(ctx context.Context, idea *models.Idea) error
	GetByID(ctx context.Context, id string) (*models.Idea, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.Idea, error)
	// List returns newest first along with the unpaginated total.
	List(ctx context.Context, filter IdeaFilter) ([]*models.Idea, int64, error)
}

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	Status models.ProjectStatus
	Limit  int
	Offset int
}

// ProjectRepository defines operations for projects and their membership.
type ProjectRepository interface {
	GetByID(ctx context.Context, id string) (*models.Project, error)
	GetByIdeaID(ctx context.Context, ideaID string) (*models.Project, error)
	List(ctx context.Context, filter ProjectFilter) ([]*models.Project, int64, error)
	// Join adds userID to the idea's project, creating the project on first join.
	// created reports whether a new project was made.
	Join(ctx context.Context, ideaID, userID string) (project *models.Project, created bool, err error)
	RemoveMember(ctx context.Context, projectID, userID string) error
	UpdateStatus(ctx context.Context, id string, status models.ProjectStatus) (*models.Project, error)
	ListJoinedBy(ctx context.Context, userID string) ([]*models.Project, error)
	ListCreatedBy(ctx context.Context, userID string) ([]*models.Project, error)
}

// TokenRepository defines operations for refresh token management.
type TokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id string) error
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// ResetTokenRepository defines operations for password reset tokens.
type ResetTokenRepository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	MarkUsed(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	// DeleteForUser removes the user's reset tokens except keepID, if set.
	DeleteForUser(ctx context.Context, userID, keepID string) error
	// DeleteStale removes expired and already-used tokens.
	DeleteStale(ctx context.Context) (int64, error)
}
