package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/collabhub/collabhub/internal/models"
)

type sqliteProjectRepo struct {
	db *sql.DB
}

const projectColumns = `id, idea_id, creator_id, status, created_at, updated_at`

func scanProject(s scanner) (*models.Project, error) {
	p := &models.Project{}
	if err := s.Scan(&p.ID, &p.IdeaID, &p.CreatorID, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *sqliteProjectRepo) GetByID(ctx context.Context, id string) (*models.Project, error) {
	return r.getOne(ctx, r.db, "id", id)
}

func (r *sqliteProjectRepo) GetByIdeaID(ctx context.Context, ideaID string) (*models.Project, error) {
	return r.getOne(ctx, r.db, "idea_id", ideaID)
}

// dbtx is satisfied by *sql.DB and *sql.Tx.
type dbtx interface {
	queryer
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *sqliteProjectRepo) getOne(ctx context.Context, q dbtx, column, value string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE ` + column + ` = ?`
	p, err := scanProject(q.QueryRowContext(ctx, query, value))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project by %s: %w", column, err)
	}

	if p.Members, err = memberIDs(ctx, q, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func memberIDs(ctx context.Context, q queryer, projectID string) ([]string, error) {
	ids, err := queryIDs(ctx, q,
		`SELECT user_id FROM project_members WHERE project_id = ? ORDER BY joined_at, rowid`, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project members: %w", err)
	}
	return ids, nil
}

func (r *sqliteProjectRepo) List(ctx context.Context, filter ProjectFilter) ([]*models.Project, int64, error) {
	clause := ""
	var args []any
	if filter.Status != "" {
		clause = ` WHERE status = ?`
		args = append(args, filter.Status)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}

	query := `SELECT ` + projectColumns + ` FROM projects` + clause +
		` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	projects, err := r.queryProjects(ctx, query, append(args, limitOrAll(filter.Limit), filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

func (r *sqliteProjectRepo) ListJoinedBy(ctx context.Context, userID string) ([]*models.Project, error) {
	query := `
		SELECT p.id, p.idea_id, p.creator_id, p.status, p.created_at, p.updated_at
		FROM projects p
		JOIN project_members m ON m.project_id = p.id
		WHERE m.user_id = ?
		ORDER BY m.joined_at, m.rowid
	`
	return r.queryProjects(ctx, query, userID)
}

func (r *sqliteProjectRepo) ListCreatedBy(ctx context.Context, userID string) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE creator_id = ? ORDER BY created_at, rowid`
	return r.queryProjects(ctx, query, userID)
}

// queryProjects scans all rows first, then loads members. The pool has one
// connection, so member queries cannot run while rows are still open.
func (r *sqliteProjectRepo) queryProjects(ctx context.Context, query string, args ...any) ([]*models.Project, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	projects := []*models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list projects: %w", err)
	}
	rows.Close()

	for _, p := range projects {
		if p.Members, err = memberIDs(ctx, r.db, p.ID); err != nil {
			return nil, err
		}
	}
	return projects, nil
}

// Join adds userID to the idea's project inside one transaction. The project is
// created on the first join with the idea's author as creator.
func (r *sqliteProjectRepo) Join(ctx context.Context, ideaID, userID string) (project *models.Project, created bool, err error) {
	defer track("project_join")(&err)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin join: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, userID).Scan(&exists)
	if err != nil {
		return nil, false, fmt.Errorf("check user: %w", err)
	}
	if exists == 0 {
		return nil, false, ErrUserNotFound
	}

	var authorID string
	err = tx.QueryRowContext(ctx, `SELECT created_by FROM ideas WHERE id = ?`, ideaID).Scan(&authorID)
	if err == sql.ErrNoRows {
		return nil, false, ErrIdeaNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("get idea: %w", err)
	}

	now := time.Now().UTC()

	project, err = r.getOne(ctx, tx, "idea_id", ideaID)
	if err != nil {
		return nil, false, err
	}
	if project == nil {
		project = models.NewProject(ideaID, authorID, userID)
		project.ID = uuid.New().String()
		project.Members = []string{}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			project.ID, project.IdeaID, project.CreatorID, project.Status, project.CreatedAt, project.UpdatedAt,
		)
		if err != nil {
			return nil, false, fmt.Errorf("insert project: %w", err)
		}
		created = true
	}

	if project.IsClosed() {
		return nil, false, ErrProjectClosed
	}
	if project.HasMember(userID) {
		return nil, false, ErrAlreadyMember
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, joined_at) VALUES (?, ?, ?)`,
		project.ID, userID, now,
	)
	if isUniqueViolation(err) {
		return nil, false, ErrAlreadyMember
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert member: %w", err)
	}

	if !created {
		if _, err = tx.ExecContext(ctx, `UPDATE projects SET updated_at = ? WHERE id = ?`, now, project.ID); err != nil {
			return nil, false, fmt.Errorf("touch project: %w", err)
		}
		project.UpdatedAt = now
	}
	project.Members = append(project.Members, userID)

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit join: %w", err)
	}
	return project, created, nil
}

func (r *sqliteProjectRepo) RemoveMember(ctx context.Context, projectID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("remove member %s from %s: %w", userID, projectID, ErrNotMember)
	}
	return nil
}

// UpdateStatus moves a project to a new status if the transition is allowed.
func (r *sqliteProjectRepo) UpdateStatus(ctx context.Context, id string, status models.ProjectStatus) (project *models.Project, err error) {
	defer track("project_status")(&err)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status update: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	project, err = r.getOne(ctx, tx, "id", id)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	if !models.CanTransition(project.Status, status) {
		return nil, fmt.Errorf("%s -> %s: %w", project.Status, status, ErrInvalidTransition)
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx,
		`UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`, status, now, id); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status update: %w", err)
	}

	project.Status = status
	project.UpdatedAt = now
	return project, nil
}
