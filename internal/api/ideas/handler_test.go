package ideas

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabhub/collabhub/internal/api/auth"
	"github.com/collabhub/collabhub/internal/api/middleware"
	"github.com/collabhub/collabhub/internal/models"
	"github.com/collabhub/collabhub/internal/storage"
)

func setup(t *testing.T) (*Handler, *storage.SQLiteStorage) {
	t.Helper()
	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "ideas.db"))
	require.NoError(t, store.Open())
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate())
	return NewHandler(store), store
}

func seedUser(t *testing.T, store storage.Storage, name string) *models.User {
	t.Helper()
	u := models.NewUser(name, name+"@example.com", models.DomainDesign)
	u.ID = uuid.New().String()
	u.PasswordHash = "x"
	require.NoError(t, store.Users().Create(context.Background(), u))
	return u
}

func as(r *http.Request, u *models.User) *http.Request {
	return r.WithContext(middleware.WithClaims(r.Context(), &auth.Claims{UserID: u.ID, Name: u.Name, Role: u.Role}))
}

func withID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func post(t *testing.T, h *Handler, u *models.User, v any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(v))
	rec := httptest.NewRecorder()
	h.Create(rec, as(httptest.NewRequest(http.MethodPost, "/api/ideas", &buf), u))
	return rec
}

func TestCreate(t *testing.T) {
	h, store := setup(t)
	u := seedUser(t, store, "grace")

	rec := post(t, h, u, map[string]any{
		"title":        "  Open source CAD  ",
		"description":  "A browser based CAD tool",
		"domains":      []string{"tech", "Design", "Tech"},
		"roles_needed": []string{"frontend", " ", "3d"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data models.Idea `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Data.ID)
	assert.Equal(t, "Open source CAD", resp.Data.Title)
	assert.Equal(t, []models.Domain{models.DomainTech, models.DomainDesign}, resp.Data.Domains)
	assert.Equal(t, []string{"frontend", "3d"}, resp.Data.RolesNeeded)
	assert.Equal(t, u.ID, resp.Data.CreatedBy)
	require.NotNil(t, resp.Data.Creator)
	assert.Equal(t, "grace", resp.Data.Creator.Name)
}

func TestCreate_Validation(t *testing.T) {
	h, store := setup(t)
	u := seedUser(t, store, "grace")

	tests := []struct {
		name string
		body map[string]any
		want string
	}{
		{"missing title", map[string]any{"description": "d", "domains": []string{"Tech"}}, "title is required"},
		{"blank description", map[string]any{"title": "t", "description": "   ", "domains": []string{"Tech"}}, "description is required"},
		{"no domains", map[string]any{"title": "t", "description": "d", "domains": []string{}}, "domains"},
		{"bad domain", map[string]any{"title": "t", "description": "d", "domains": []string{"Sports"}}, "domains must be one of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, u, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestCreate_BadJSON(t *testing.T) {
	h, store := setup(t)
	u := seedUser(t, store, "grace")

	rec := httptest.NewRecorder()
	h.Create(rec, as(httptest.NewRequest(http.MethodPost, "/api/ideas", bytes.NewBufferString("{")), u))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGet(t *testing.T) {
	h, store := setup(t)
	author := seedUser(t, store, "grace")
	joiner := seedUser(t, store, "alan")

	idea := models.NewIdea("Title", "Desc", []models.Domain{models.DomainContent}, nil, author.ID)
	require.NoError(t, store.Ideas().Create(context.Background(), idea))

	rec := httptest.NewRecorder()
	h.Get(rec, withID(httptest.NewRequest(http.MethodGet, "/api/ideas/"+idea.ID, nil), idea.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"project":null`)

	_, _, err := store.Projects().Join(context.Background(), idea.ID, joiner.ID)
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	h.Get(rec, withID(httptest.NewRequest(http.MethodGet, "/api/ideas/"+idea.ID, nil), idea.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			ID      string          `json:"id"`
			Creator *models.UserRef `json:"creator"`
			Project *ProjectSummary `json:"project"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, idea.ID, resp.Data.ID)
	require.NotNil(t, resp.Data.Creator)
	require.NotNil(t, resp.Data.Project)
	assert.Equal(t, models.StatusOpen, resp.Data.Project.Status)
	assert.Equal(t, 1, resp.Data.Project.MemberCount)
}

func TestGet_NotFound(t *testing.T) {
	h, _ := setup(t)

	rec := httptest.NewRecorder()
	h.Get(rec, withID(httptest.NewRequest(http.MethodGet, "/api/ideas/nope", nil), "nope"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Idea not found")
}

func TestList(t *testing.T) {
	h, store := setup(t)
	u := seedUser(t, store, "grace")
	ctx := context.Background()

	require.NoError(t, store.Ideas().Create(ctx, models.NewIdea("a", "d", []models.Domain{models.DomainTech}, nil, u.ID)))
	require.NoError(t, store.Ideas().Create(ctx, models.NewIdea("b", "d", []models.Domain{models.DomainBusiness}, nil, u.ID)))

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/ideas?domain=business", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Items []models.Idea `json:"items"`
			Total int64         `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.EqualValues(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, "b", resp.Data.Items[0].Title)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/ideas?domain=sports", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/ideas?per_page=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
