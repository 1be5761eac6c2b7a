package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/collabhub/collabhub/internal/models"
)

type sqliteIdeaRepo struct {
	db *sql.DB
}

// ideaSelect joins the author so reads come back populated.
const ideaSelect = `
	SELECT i.id, i.title, i.description, i.domains, i.roles_needed, i.created_by, i.created_at,
	       u.id, u.name, u.email, u.domain
	FROM ideas i
	LEFT JOIN users u ON u.id = i.created_by
`

func scanIdea(s scanner) (*models.Idea, error) {
	idea := &models.Idea{}
	var domainsJSON, rolesJSON string
	var uID, uName, uEmail, uDomain sql.NullString

	err := s.Scan(
		&idea.ID, &idea.Title, &idea.Description, &domainsJSON, &rolesJSON, &idea.CreatedBy, &idea.CreatedAt,
		&uID, &uName, &uEmail, &uDomain,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(domainsJSON), &idea.Domains); err != nil {
		return nil, fmt.Errorf("decode domains: %w", err)
	}
	if err := json.Unmarshal([]byte(rolesJSON), &idea.RolesNeeded); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	if idea.RolesNeeded == nil {
		idea.RolesNeeded = []string{}
	}

	if uID.Valid {
		idea.Creator = &models.UserRef{
			ID:     uID.String,
			Name:   uName.String,
			Email:  uEmail.String,
			Domain: models.Domain(uDomain.String),
		}
	}
	return idea, nil
}

func (r *sqliteIdeaRepo) Create(ctx context.Context, idea *models.Idea) (err error) {
	defer track("idea_create")(&err)

	if idea.ID == "" {
		idea.ID = uuid.New().String()
	}
	if idea.RolesNeeded == nil {
		idea.RolesNeeded = []string{}
	}

	domains, err := json.Marshal(idea.Domains)
	if err != nil {
		return fmt.Errorf("encode domains: %w", err)
	}
	roles, err := json.Marshal(idea.RolesNeeded)
	if err != nil {
		return fmt.Errorf("encode roles: %w", err)
	}

	query := `
		INSERT INTO ideas (id, title, description, domains, roles_needed, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		idea.ID, idea.Title, idea.Description, string(domains), string(roles), idea.CreatedBy, idea.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("insert idea: %w", ErrUserNotFound)
		}
		return fmt.Errorf("insert idea: %w", err)
	}
	return nil
}

func (r *sqliteIdeaRepo) GetByID(ctx context.Context, id string) (*models.Idea, error) {
	idea, err := scanIdea(r.db.QueryRowContext(ctx, ideaSelect+` WHERE i.id = ?`, id))
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idea by id: %w", err)
	}
	return idea, nil
}

func (r *sqliteIdeaRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Idea, error) {
	out := make(map[string]*models.Idea, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, ideaSelect+` WHERE i.id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get ideas by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, fmt.Errorf("scan idea: %w", err)
		}
		out[idea.ID] = idea
	}
	return out, rows.Err()
}

func (r *sqliteIdeaRepo) List(ctx context.Context, filter IdeaFilter) (ideas []*models.Idea, total int64, err error) {
	defer track("idea_list")(&err)

	var where []string
	var args []any
	if filter.Domain != "" {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(i.domains) WHERE json_each.value = ?)`)
		args = append(args, string(filter.Domain))
	}
	if filter.CreatedBy != "" {
		where = append(where, `i.created_by = ?`)
		args = append(args, filter.CreatedBy)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ideas i`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ideas: %w", err)
	}

	query := ideaSelect + clause + ` ORDER BY i.created_at DESC, i.rowid DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limitOrAll(filter.Limit), filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ideas: %w", err)
	}
	defer rows.Close()

	ideas = []*models.Idea{}
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan idea: %w", err)
		}
		ideas = append(ideas, idea)
	}
	return ideas, total, rows.Err()
}
