// Package projects provides the project membership API endpoints.
package projects

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/collabhub/collabhub/internal/api/middleware"
	"github.com/collabhub/collabhub/internal/api/pagination"
	"github.com/collabhub/collabhub/internal/logger"
	"github.com/collabhub/collabhub/internal/metrics"
	"github.com/collabhub/collabhub/internal/models"
	"github.com/collabhub/collabhub/internal/storage"
)

// Response helpers (same pattern as ideas)
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

const (
	errCodeBadRequest       = "BAD_REQUEST"
	errCodeValidationFailed = "VALIDATION_FAILED"
	errCodeForbidden        = "FORBIDDEN"
	errCodeNotFound         = "NOT_FOUND"
	errCodeConflict         = "CONFLICT"
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

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

func jsonNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func internalError(w http.ResponseWriter, op string, err error) {
	logger.Errorf("%s error: %v", op, err)
	jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
}

// ProjectResponse is a project with its idea, creator and members populated.
type ProjectResponse struct {
	ID        string               `json:"id"`
	Idea      *models.Idea         `json:"idea"`
	Creator   *models.UserRef      `json:"creator"`
	Members   []*models.UserRef    `json:"members"`
	Status    models.ProjectStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// MyProjectsResponse splits the caller's projects by relationship.
type MyProjectsResponse struct {
	JoinedProjects  []*ProjectResponse `json:"joined_projects"`
	CreatedProjects []*ProjectResponse `json:"created_projects"`
}

type Handler struct {
	storage storage.Storage
}

func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// populate resolves ideas and users for a batch of projects with two lookups.
func (h *Handler) populate(r *http.Request, projects []*models.Project) ([]*ProjectResponse, error) {
	ctx := r.Context()

	ideaIDs := make([]string, 0, len(projects))
	userIDs := make([]string, 0, len(projects))
	for _, p := range projects {
		ideaIDs = append(ideaIDs, p.IdeaID)
		userIDs = append(userIDs, p.CreatorID)
		userIDs = append(userIDs, p.Members...)
	}

	ideas, err := h.storage.Ideas().GetByIDs(ctx, ideaIDs)
	if err != nil {
		return nil, fmt.Errorf("load ideas: %w", err)
	}
	users, err := h.storage.Users().GetRefs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	out := make([]*ProjectResponse, 0, len(projects))
	for _, p := range projects {
		resp := &ProjectResponse{
			ID:        p.ID,
			Idea:      ideas[p.IdeaID],
			Creator:   users[p.CreatorID],
			Members:   make([]*models.UserRef, 0, len(p.Members)),
			Status:    p.Status,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		}
		for _, id := range p.Members {
			if u, ok := users[id]; ok {
				resp.Members = append(resp.Members, u)
			}
		}
		out = append(out, resp)
	}
	return out, nil
}

func (h *Handler) populateOne(r *http.Request, p *models.Project) (*ProjectResponse, error) {
	out, err := h.populate(r, []*models.Project{p})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Join adds the caller to the idea's project, creating it on the first join.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ideaID := chi.URLParam(r, "ideaId")
	userID := middleware.GetUserID(ctx)

	project, created, err := h.storage.Projects().Join(ctx, ideaID, userID)
	switch {
	case errors.Is(err, storage.ErrIdeaNotFound):
		metrics.ProjectJoinsTotal.WithLabelValues("idea_not_found").Inc()
		jsonError(w, http.StatusNotFound, errCodeNotFound, "Idea not found")
		return
	case errors.Is(err, storage.ErrUserNotFound):
		jsonError(w, http.StatusNotFound, errCodeNotFound, "User not found")
		return
	case errors.Is(err, storage.ErrAlreadyMember):
		metrics.ProjectJoinsTotal.WithLabelValues("already_member").Inc()
		jsonError(w, http.StatusConflict, errCodeConflict, "You are already a member of this project")
		return
	case errors.Is(err, storage.ErrProjectClosed):
		metrics.ProjectJoinsTotal.WithLabelValues("closed").Inc()
		jsonError(w, http.StatusConflict, errCodeConflict, "This project is completed and no longer accepts members")
		return
	case err != nil:
		internalError(w, "join project", err)
		return
	}

	if created {
		metrics.ProjectJoinsTotal.WithLabelValues("created").Inc()
		logger.Infof("project created: %s for idea %s", project.ID, ideaID)
	} else {
		metrics.ProjectJoinsTotal.WithLabelValues("joined").Inc()
	}
	logger.Infof("user %s joined project %s", userID, project.ID)

	resp, err := h.populateOne(r, project)
	if err != nil {
		internalError(w, "populate project", err)
		return
	}
	jsonCreated(w, resp)
}

// Leave removes the caller from a project.
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	userID := middleware.GetUserID(ctx)

	project, err := h.storage.Projects().GetByID(ctx, id)
	if err != nil {
		internalError(w, "get project", err)
		return
	}
	if project == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "Project not found")
		return
	}
	if !middleware.GetProjectAccess(ctx, project).IsMember {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "You are not a member of this project")
		return
	}
	if project.IsClosed() {
		jsonError(w, http.StatusConflict, errCodeConflict, "This project is completed")
		return
	}

	if err := h.storage.Projects().RemoveMember(ctx, id, userID); err != nil {
		if errors.Is(err, storage.ErrNotMember) {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "You are not a member of this project")
			return
		}
		internalError(w, "leave project", err)
		return
	}

	logger.Infof("user %s left project %s", userID, id)
	jsonNoContent(w)
}

// MyProjects returns the projects the caller joined and the ones built on their ideas.
func (h *Handler) MyProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	user, err := h.storage.Users().GetByID(ctx, userID)
	if err != nil {
		internalError(w, "get user", err)
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "User not found")
		return
	}

	var joined, created []*models.Project
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		joined, err = h.storage.Projects().ListJoinedBy(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		created, err = h.storage.Projects().ListCreatedBy(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		internalError(w, "list my projects", err)
		return
	}

	resp := &MyProjectsResponse{}
	if resp.JoinedProjects, err = h.populate(r, joined); err != nil {
		internalError(w, "populate joined projects", err)
		return
	}
	if resp.CreatedProjects, err = h.populate(r, created); err != nil {
		internalError(w, "populate created projects", err)
		return
	}

	jsonOK(w, resp)
}

// List returns projects, optionally filtered by status.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.Parse(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, err.Error())
		return
	}

	filter := storage.ProjectFilter{Limit: page.PerPage, Offset: page.Offset()}
	if s := r.URL.Query().Get("status"); s != "" {
		status, ok := models.ParseProjectStatus(s)
		if !ok {
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid status filter")
			return
		}
		filter.Status = status
	}

	projects, total, err := h.storage.Projects().List(r.Context(), filter)
	if err != nil {
		internalError(w, "list projects", err)
		return
	}

	items, err := h.populate(r, projects)
	if err != nil {
		internalError(w, "populate projects", err)
		return
	}

	jsonOK(w, pagination.NewResponse(items, total, page))
}

// Get returns a single project.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	project, err := h.storage.Projects().GetByID(r.Context(), id)
	if err != nil {
		internalError(w, "get project", err)
		return
	}
	if project == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "Project not found")
		return
	}

	resp, err := h.populateOne(r, project)
	if err != nil {
		internalError(w, "populate project", err)
		return
	}
	jsonOK(w, resp)
}

// UpdateStatus moves a project through Open, In Progress and Completed.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}
	status, err := req.Validate()
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	project, err := h.storage.Projects().GetByID(ctx, id)
	if err != nil {
		internalError(w, "get project", err)
		return
	}
	if project == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "Project not found")
		return
	}
	if !middleware.GetProjectAccess(ctx, project).CanManage() {
		jsonError(w, http.StatusForbidden, errCodeForbidden, middleware.ErrProjectAccessDenied.Error())
		return
	}

	updated, err := h.storage.Projects().UpdateStatus(ctx, id, status)
	switch {
	case errors.Is(err, storage.ErrProjectNotFound):
		jsonError(w, http.StatusNotFound, errCodeNotFound, "Project not found")
		return
	case errors.Is(err, storage.ErrInvalidTransition):
		jsonError(w, http.StatusConflict, errCodeConflict,
			fmt.Sprintf("cannot change status from %s to %s", project.Status, status))
		return
	case err != nil:
		internalError(w, "update project status", err)
		return
	}

	metrics.ProjectStatusChangesTotal.WithLabelValues(string(status)).Inc()
	logger.Infof("project %s status %s -> %s by %s", id, project.Status, status, middleware.GetUserID(ctx))

	resp, err := h.populateOne(r, updated)
	if err != nil {
		internalError(w, "populate project", err)
		return
	}
	jsonOK(w, resp)
}
