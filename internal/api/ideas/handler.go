package ideas

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/collabhub/collabhub/internal/api/middleware"
	"github.com/collabhub/collabhub/internal/api/pagination"
	"github.com/collabhub/collabhub/internal/logger"
	"github.com/collabhub/collabhub/internal/metrics"
	"github.com/collabhub/collabhub/internal/models"
	"github.com/collabhub/collabhub/internal/storage"
)

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
	errCodeUnauthorized     = "UNAUTHORIZED"
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

func jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

func internalError(w http.ResponseWriter, op string, err error) {
	logger.Errorf("%s error: %v", op, err)
	jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
}

// ProjectSummary describes the project formed around an idea, if any.
type ProjectSummary struct {
	ID          string               `json:"id"`
	Status      models.ProjectStatus `json:"status"`
	MemberCount int                  `json:"member_count"`
	CreatedAt   time.Time            `json:"created_at"`
}

// IdeaResponse is an idea with its project summary.
type IdeaResponse struct {
	*models.Idea
	Project *ProjectSummary `json:"project"`
}

// Handler handles idea endpoints.
type Handler struct {
	storage storage.Storage
}

// NewHandler creates a new idea handler.
func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store}
}

// List returns ideas newest first, optionally filtered by domain.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.Parse(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, err.Error())
		return
	}

	filter := storage.IdeaFilter{Limit: page.PerPage, Offset: page.Offset()}
	if s := r.URL.Query().Get("domain"); s != "" {
		d, ok := models.ParseDomain(s)
		if !ok {
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid domain filter")
			return
		}
		filter.Domain = d
	}
	filter.CreatedBy = r.URL.Query().Get("created_by")

	ideas, total, err := h.storage.Ideas().List(r.Context(), filter)
	if err != nil {
		internalError(w, "list ideas", err)
		return
	}

	jsonOK(w, pagination.NewResponse(ideas, total, page))
}

// Get returns one idea with its creator and project summary.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	idea, err := h.storage.Ideas().GetByID(ctx, id)
	if err != nil {
		internalError(w, "get idea", err)
		return
	}
	if idea == nil {
		jsonError(w, http.StatusNotFound, errCodeNotFound, "Idea not found")
		return
	}

	resp := &IdeaResponse{Idea: idea}

	project, err := h.storage.Projects().GetByIdeaID(ctx, idea.ID)
	if err != nil {
		internalError(w, "get idea project", err)
		return
	}
	if project != nil {
		resp.Project = &ProjectSummary{
			ID:          project.ID,
			Status:      project.Status,
			MemberCount: len(project.Members),
			CreatedAt:   project.CreatedAt,
		}
	}

	jsonOK(w, resp)
}

// Create posts a new idea authored by the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid request body")
		return
	}

	domains, roles, err := req.Validate()
	if err != nil {
		jsonError(w, http.StatusBadRequest, errCodeValidationFailed, err.Error())
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	idea := models.NewIdea(req.Title, req.Description, domains, roles, userID)
	if err := h.storage.Ideas().Create(ctx, idea); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			jsonError(w, http.StatusUnauthorized, errCodeUnauthorized, "User no longer exists")
			return
		}
		internalError(w, "create idea", err)
		return
	}

	// Re-read so the creator is populated.
	created, err := h.storage.Ideas().GetByID(ctx, idea.ID)
	if err != nil || created == nil {
		logger.Warnf("create idea: reload %s: %v", idea.ID, err)
		created = idea
	}

	metrics.IdeasCreatedTotal.Inc()
	logger.Infof("idea created: %s by %s", idea.ID, userID)

	jsonCreated(w, created)
}
