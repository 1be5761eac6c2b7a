package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/collabhub/collabhub/internal/models"
)

type sqliteUserRepo struct {
	db *sql.DB
}

const userColumns = `id, name, email, password_hash, domain, role, created_at, updated_at`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*models.User, error) {
	user := &models.User{}
	err := s.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Domain, &user.Role,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *sqliteUserRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Name, models.NormalizeEmail(user.Email), user.PasswordHash, user.Domain, user.Role,
		user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert user %s: %w", user.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *sqliteUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, "id", id)
}

func (r *sqliteUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email", models.NormalizeEmail(email))
}

func (r *sqliteUserRepo) getOne(ctx context.Context, column, value string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, value))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}

	if err := r.loadProjectRefs(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// loadProjectRefs fills the derived joined/created project lists.
func (r *sqliteUserRepo) loadProjectRefs(ctx context.Context, user *models.User) error {
	joined, err := queryIDs(ctx, r.db,
		`SELECT project_id FROM project_members WHERE user_id = ? ORDER BY joined_at, rowid`, user.ID)
	if err != nil {
		return fmt.Errorf("load joined projects: %w", err)
	}
	created, err := queryIDs(ctx, r.db,
		`SELECT id FROM projects WHERE creator_id = ? ORDER BY created_at, rowid`, user.ID)
	if err != nil {
		return fmt.Errorf("load created projects: %w", err)
	}
	user.JoinedProjects = joined
	user.CreatedProjects = created
	return nil
}

func (r *sqliteUserRepo) GetRefs(ctx context.Context, ids []string) (map[string]*models.UserRef, error) {
	refs := make(map[string]*models.UserRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := `SELECT id, name, email, domain FROM users WHERE id IN (` + placeholders(len(ids)) + `)`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get user refs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		ref := &models.UserRef{}
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.Email, &ref.Domain); err != nil {
			return nil, fmt.Errorf("scan user ref: %w", err)
		}
		refs[ref.ID] = ref
	}
	return refs, rows.Err()
}

func (r *sqliteUserRepo) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET name = ?, email = ?, password_hash = ?, domain = ?, role = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		user.Name, models.NormalizeEmail(user.Email), user.PasswordHash, user.Domain, user.Role, user.UpdatedAt,
		user.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("update user %s: %w", user.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update user %s: %w", user.ID, ErrUserNotFound)
	}
	return nil
}

func (r *sqliteUserRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete user %s: %w", id, ErrUserNotFound)
	}
	return nil
}

func (r *sqliteUserRepo) List(ctx context.Context, limit, offset int) ([]*models.User, int64, error) {
	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, rowid LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, limitOrAll(limit), offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	// Release the only connection before the per-user lookups.
	rows.Close()

	for _, user := range users {
		if err := r.loadProjectRefs(ctx, user); err != nil {
			return nil, 0, err
		}
	}
	return users, total, nil
}

func (r *sqliteUserRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryIDs runs a single-column query and collects the strings. Never returns nil.
func queryIDs(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
