package projects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/collabhub/collabhub/internal/api/auth"
	"github.com/collabhub/collabhub/internal/api/middleware"
	"github.com/collabhub/collabhub/internal/models"
	"github.com/collabhub/collabhub/internal/storage"
)

// Mock repositories
type mockProjectRepository struct {
	projects      []*models.Project
	joinError     error
	getByIDError  error
	listError     error
	statusError   error
	removeError   error
	joinedByError error
	lastFilter    storage.ProjectFilter
}

func (m *mockProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	if m.getByIDError != nil {
		return nil, m.getByIDError
	}
	for _, p := range m.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockProjectRepository) GetByIdeaID(ctx context.Context, ideaID string) (*models.Project, error) {
	for _, p := range m.projects {
		if p.IdeaID == ideaID {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockProjectRepository) List(ctx context.Context, filter storage.ProjectFilter) ([]*models.Project, int64, error) {
	m.lastFilter = filter
	if m.listError != nil {
		return nil, 0, m.listError
	}
	var out []*models.Project
	for _, p := range m.projects {
		if filter.Status == "" || p.Status == filter.Status {
			out = append(out, p)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockProjectRepository) Join(ctx context.Context, ideaID, userID string) (*models.Project, bool, error) {
	if m.joinError != nil {
		return nil, false, m.joinError
	}
	p, _ := m.GetByIdeaID(ctx, ideaID)
	if p == nil {
		p = models.NewProject(ideaID, "author", userID)
		p.ID = "p-" + ideaID
		m.projects = append(m.projects, p)
		return p, true, nil
	}
	p.Members = append(p.Members, userID)
	return p, false, nil
}

func (m *mockProjectRepository) RemoveMember(ctx context.Context, projectID, userID string) error {
	if m.removeError != nil {
		return m.removeError
	}
	p, _ := m.GetByID(ctx, projectID)
	if p == nil {
		return storage.ErrProjectNotFound
	}
	for i, id := range p.Members {
		if id == userID {
			p.Members = append(p.Members[:i], p.Members[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotMember
}

func (m *mockProjectRepository) UpdateStatus(ctx context.Context, id string, status models.ProjectStatus) (*models.Project, error) {
	if m.statusError != nil {
		return nil, m.statusError
	}
	p, _ := m.GetByID(ctx, id)
	if p == nil {
		return nil, storage.ErrProjectNotFound
	}
	if !models.CanTransition(p.Status, status) {
		return nil, storage.ErrInvalidTransition
	}
	p.Status = status
	return p, nil
}

func (m *mockProjectRepository) ListJoinedBy(ctx context.Context, userID string) ([]*models.Project, error) {
	if m.joinedByError != nil {
		return nil, m.joinedByError
	}
	var out []*models.Project
	for _, p := range m.projects {
		if p.HasMember(userID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProjectRepository) ListCreatedBy(ctx context.Context, userID string) ([]*models.Project, error) {
	var out []*models.Project
	for _, p := range m.projects {
		if p.CreatorID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockIdeaRepository struct {
	ideas map[string]*models.Idea
}

func (m *mockIdeaRepository) Create(ctx context.Context, idea *models.Idea) error {
	m.ideas[idea.ID] = idea
	return nil
}

func (m *mockIdeaRepository) GetByID(ctx context.Context, id string) (*models.Idea, error) {
	return m.ideas[id], nil
}

func (m *mockIdeaRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Idea, error) {
	out := make(map[string]*models.Idea)
	for _, id := range ids {
		if idea, ok := m.ideas[id]; ok {
			out[id] = idea
		}
	}
	return out, nil
}

func (m *mockIdeaRepository) List(ctx context.Context, filter storage.IdeaFilter) ([]*models.Idea, int64, error) {
	return nil, 0, nil
}

type mockUserRepository struct {
	users        []*models.User
	getByIDError error
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.getByIDError != nil {
		return nil, m.getByIDError
	}
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, nil
}

func (m *mockUserRepository) GetRefs(ctx context.Context, ids []string) (map[string]*models.UserRef, error) {
	out := make(map[string]*models.UserRef)
	for _, id := range ids {
		if u, _ := m.GetByID(ctx, id); u != nil {
			out[id] = u.Ref()
		}
	}
	return out, nil
}

func (m *mockUserRepository) Update(ctx context.Context, user *models.User) error {
	return nil
}

func (m *mockUserRepository) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *mockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, int64, error) {
	return m.users, int64(len(m.users)), nil
}

func (m *mockUserRepository) Count(ctx context.Context) (int64, error) {
	return int64(len(m.users)), nil
}

type mockStorage struct {
	projectRepo *mockProjectRepository
	ideaRepo    *mockIdeaRepository
	userRepo    *mockUserRepository
}

func (m *mockStorage) Open() error                                { return nil }
func (m *mockStorage) Close() error                               { return nil }
func (m *mockStorage) Migrate() error                             { return nil }
func (m *mockStorage) EnsureAdminUser(int) error                  { return nil }
func (m *mockStorage) Users() storage.UserRepository              { return m.userRepo }
func (m *mockStorage) Ideas() storage.IdeaRepository              { return m.ideaRepo }
func (m *mockStorage) Projects() storage.ProjectRepository        { return m.projectRepo }
func (m *mockStorage) Tokens() storage.TokenRepository            { return nil }
func (m *mockStorage) ResetTokens() storage.ResetTokenRepository  { return nil }

func newMockStorage() (*mockStorage, *mockProjectRepository, *mockUserRepository) {
	projectRepo := &mockProjectRepository{}
	userRepo := &mockUserRepository{
		users: []*models.User{
			{ID: "author", Name: "Author", Email: "author@example.com", Domain: models.DomainTech, Role: models.RoleMember},
			{ID: "user-1", Name: "User One", Email: "one@example.com", Domain: models.DomainDesign, Role: models.RoleMember},
			{ID: "admin", Name: "Admin", Email: "admin@example.com", Domain: models.DomainBusiness, Role: models.RoleAdmin},
		},
	}
	ideaRepo := &mockIdeaRepository{ideas: map[string]*models.Idea{
		"idea-1": {ID: "idea-1", Title: "Idea", Description: "d", Domains: []models.Domain{models.DomainTech}, CreatedBy: "author", CreatedAt: time.Now()},
	}}
	return &mockStorage{
		projectRepo: projectRepo,
		ideaRepo:    ideaRepo,
		userRepo:    userRepo,
	}, projectRepo, userRepo
}

// Helper to create request with user context
func withUser(r *http.Request, userID string, role models.Role) *http.Request {
	ctx := middleware.WithClaims(r.Context(), &auth.Claims{UserID: userID, Role: role})
	return r.WithContext(ctx)
}

// Helper to add chi URL params
func withParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeProject(t *testing.T, rr *httptest.ResponseRecorder) *ProjectResponse {
	t.Helper()
	var resp struct {
		Data ProjectResponse `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return &resp.Data
}

func TestJoin_CreatesProject(t *testing.T) {
	store, projectRepo, _ := newMockStorage()
	h := NewHandler(store)

	req := httptest.NewRequest(http.MethodPost, "/api/projects/join/idea-1", nil)
	req = withParam(withUser(req, "user-1", models.RoleMember), "ideaId", "idea-1")
	rr := httptest.NewRecorder()
	h.Join(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	if len(projectRepo.projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(projectRepo.projects))
	}

	p := decodeProject(t, rr)
	if p.Status != models.StatusOpen {
		t.Errorf("expected status Open, got %s", p.Status)
	}
	if p.Idea == nil || p.Idea.ID != "idea-1" {
		t.Errorf("expected idea to be populated, got %+v", p.Idea)
	}
	if p.Creator == nil || p.Creator.ID != "author" {
		t.Errorf("expected creator author, got %+v", p.Creator)
	}
	if len(p.Members) != 1 || p.Members[0].Name != "User One" {
		t.Errorf("expected populated member User One, got %+v", p.Members)
	}
}

func TestJoin_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"idea missing", storage.ErrIdeaNotFound, http.StatusNotFound, "Idea not found"},
		{"already member", storage.ErrAlreadyMember, http.StatusConflict, "You are already a member of this project"},
		{"completed", storage.ErrProjectClosed, http.StatusConflict, "no longer accepts members"},
		{"storage failure", errors.New("db down"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, projectRepo, _ := newMockStorage()
			projectRepo.joinError = tt.err
			h := NewHandler(store)

			req := httptest.NewRequest(http.MethodPost, "/api/projects/join/idea-1", nil)
			req = withParam(withUser(req, "user-1", models.RoleMember), "ideaId", "idea-1")
			rr := httptest.NewRecorder()
			h.Join(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if !strings.Contains(rr.Body.String(), tt.wantMsg) {
				t.Errorf("expected body to contain %q, got %s", tt.wantMsg, rr.Body.String())
			}
		})
	}
}

func TestMyProjects(t *testing.T) {
	store, projectRepo, _ := newMockStorage()
	projectRepo.projects = []*models.Project{
		{ID: "p1", IdeaID: "idea-1", CreatorID: "author", Members: []string{"user-1"}, Status: models.StatusOpen},
	}
	h := NewHandler(store)

	for _, tc := range []struct {
		user          string
		joined, owned int
	}{
		{"user-1", 1, 0},
		{"author", 0, 1},
	} {
		req := withUser(httptest.NewRequest(http.MethodGet, "/api/projects/my-projects", nil), tc.user, models.RoleMember)
		rr := httptest.NewRecorder()
		h.MyProjects(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected status %d, got %d", tc.user, http.StatusOK, rr.Code)
		}
		var resp struct {
			Data MyProjectsResponse `json:"data"`
		}
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(resp.Data.JoinedProjects) != tc.joined || len(resp.Data.CreatedProjects) != tc.owned {
			t.Errorf("%s: expected %d joined and %d created, got %d and %d", tc.user,
				tc.joined, tc.owned, len(resp.Data.JoinedProjects), len(resp.Data.CreatedProjects))
		}
		for _, p := range append(resp.Data.JoinedProjects, resp.Data.CreatedProjects...) {
			if p.Idea == nil {
				t.Errorf("%s: expected idea to be populated", tc.user)
			}
		}
	}
}

func TestMyProjects_EmptyListsAreArrays(t *testing.T) {
	store, _, _ := newMockStorage()
	h := NewHandler(store)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/projects/my-projects", nil), "user-1", models.RoleMember)
	rr := httptest.NewRecorder()
	h.MyProjects(rr, req)

	if !strings.Contains(rr.Body.String(), `"joined_projects":[]`) {
		t.Errorf("expected empty joined_projects array, got %s", rr.Body.String())
	}
}

func TestMyProjects_UserGone(t *testing.T) {
	store, _, _ := newMockStorage()
	h := NewHandler(store)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/projects/my-projects", nil), "ghost", models.RoleMember)
	rr := httptest.NewRecorder()
	h.MyProjects(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestMyProjects_StorageError(t *testing.T) {
	store, projectRepo, _ := newMockStorage()
	projectRepo.joinedByError = errors.New("db down")
	h := NewHandler(store)

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/projects/my-projects", nil), "user-1", models.RoleMember)
	rr := httptest.NewRecorder()
	h.MyProjects(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
}

func TestList(t *testing.T) {
	store, projectRepo, _ := newMockStorage()
	projectRepo.projects = []*models.Project{
		{ID: "p1", IdeaID: "idea-1", CreatorID: "author", Members: []string{"user-1"}, Status: models.StatusOpen},
		{ID: "p2", IdeaID: "idea-2", CreatorID: "author", Members: []string{}, Status: models.StatusCompleted},
	}
	h := NewHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/projects?status=Completed&page=2&per_page=1", nil)
	rr := httptest.NewRecorder()
	h.List(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if projectRepo.lastFilter.Status != models.StatusCompleted {
		t.Errorf("expected status filter Completed, got %q", projectRepo.lastFilter.Status)
	}
	if projectRepo.lastFilter.Limit != 1 || projectRepo.lastFilter.Offset != 1 {
		t.Errorf("expected limit 1 offset 1, got %d/%d", projectRepo.lastFilter.Limit, projectRepo.lastFilter.Offset)
	}
}

func TestList_InvalidStatus(t *testing.T) {
	store, _, _ := newMockStorage()
	h := NewHandler(store)

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/projects?status=Archived", nil))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestGet(t *testing.T) {
	store, projectRepo, _ := newMockStorage()
	projectRepo.projects = []*models.Project{
		{ID: "p1", IdeaID: "idea-1", CreatorID: "author", Members: []string{"user-1", "admin"}, Status: models.StatusOpen},
	}
	h := NewHandler(store)

	rr := httptest.NewRecorder()
	h.Get(rr, withParam(httptest.NewRequest(http.MethodGet, "/api/projects/p1", nil), "id", "p1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	p := decodeProject(t, rr)
	if len(p.Members) != 2 || p.Members[0].ID != "user-1" || p.Members[1].ID != "admin" {
		t.Errorf("expected members in join order, got %+v", p.Members)
	}

	rr = httptest.NewRecorder()
	h.Get(rr, withParam(httptest.NewRequest(http.MethodGet, "/api/projects/nope", nil), "id", "nope"))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestUpdateStatus(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		role       models.Role
		from       models.ProjectStatus
		body       string
		wantStatus int
	}{
		{"creator starts work", "author", models.RoleMember, models.StatusOpen, `{"status":"In Progress"}`, http.StatusOK},
		{"admin completes", "admin", models.RoleAdmin, models.StatusInProgress, `{"status":"Completed"}`, http.StatusOK},
		{"creator reopens", "author", models.RoleMember, models.StatusInProgress, `{"status":"Open"}`, http.StatusOK},
		{"member forbidden", "user-1", models.RoleMember, models.StatusOpen, `{"status":"In Progress"}`, http.StatusForbidden},
		{"skip to completed", "author", models.RoleMember, models.StatusOpen, `{"status":"Completed"}`, http.StatusConflict},
		{"completed is terminal", "author", models.RoleMember, models.StatusCompleted, `{"status":"Open"}`, http.StatusConflict},
		{"unknown status", "author", models.RoleMember, models.StatusOpen, `{"status":"Archived"}`, http.StatusBadRequest},
		{"missing status", "author", models.RoleMember, models.StatusOpen, `{}`, http.StatusBadRequest},
		{"bad json", "author", models.RoleMember, models.StatusOpen, `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, projectRepo, _ := newMockStorage()
			projectRepo.projects = []*models.Project{
				{ID: "p1", IdeaID: "idea-1", CreatorID: "author", Members: []string{"user-1"}, Status: tt.from},
			}
			h := NewHandler(store)

			req := httptest.NewRequest(http.MethodPut, "/api/projects/p1/status", strings.NewReader(tt.body))
			req = withParam(withUser(req, tt.userID, tt.role), "id", "p1")
			rr := httptest.NewRecorder()
			h.UpdateStatus(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	store, _, _ := newMockStorage()
	h := NewHandler(store)

	req := httptest.NewRequest(http.MethodPut, "/api/projects/nope/status", strings.NewReader(`{"status":"Open"}`))
	req = withParam(withUser(req, "admin", models.RoleAdmin), "id", "nope")
	rr := httptest.NewRecorder()
	h.UpdateStatus(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestLeave(t *testing.T) {
	store, projectRepo, _ := newMockStorage()
	projectRepo.projects = []*models.Project{
		{ID: "p1", IdeaID: "idea-1", CreatorID: "author", Members: []string{"user-1"}, Status: models.StatusOpen},
	}
	h := NewHandler(store)

	leave := func(userID string) int {
		req := httptest.NewRequest(http.MethodDelete, "/api/projects/p1/members/me", nil)
		req = withParam(withUser(req, userID, models.RoleMember), "id", "p1")
		rr := httptest.NewRecorder()
		h.Leave(rr, req)
		return rr.Code
	}

	if code := leave("user-1"); code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, code)
	}
	if len(projectRepo.projects[0].Members) != 0 {
		t.Errorf("expected member removed, got %v", projectRepo.projects[0].Members)
	}
	if code := leave("user-1"); code != http.StatusNotFound {
		t.Errorf("expected status %d for non-member, got %d", http.StatusNotFound, code)
	}
}

func TestLeave_CompletedProject(t *testing.T) {
	store, projectRepo, _ := newMockStorage()
	projectRepo.projects = []*models.Project{
		{ID: "p1", IdeaID: "idea-1", CreatorID: "author", Members: []string{"user-1"}, Status: models.StatusCompleted},
	}
	h := NewHandler(store)

	req := httptest.NewRequest(http.MethodDelete, "/api/projects/p1/members/me", nil)
	req = withParam(withUser(req, "user-1", models.RoleMember), "id", "p1")
	rr := httptest.NewRecorder()
	h.Leave(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rr.Code)
	}
	if len(projectRepo.projects[0].Members) != 1 {
		t.Errorf("member should remain on a completed project, got %v", projectRepo.projects[0].Members)
	}
}

func TestLeave_RemovedConcurrently(t *testing.T) {
	store, projectRepo, _ := newMockStorage()
	projectRepo.projects = []*models.Project{
		{ID: "p1", IdeaID: "idea-1", CreatorID: "author", Members: []string{"user-1"}, Status: models.StatusOpen},
	}
	projectRepo.removeError = fmt.Errorf("remove member: %w", storage.ErrNotMember)
	h := NewHandler(store)

	req := httptest.NewRequest(http.MethodDelete, "/api/projects/p1/members/me", nil)
	req = withParam(withUser(req, "user-1", models.RoleMember), "id", "p1")
	rr := httptest.NewRecorder()
	h.Leave(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}
