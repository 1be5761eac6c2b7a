package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExposesCollectors(t *testing.T) {
	IdeasCreatedTotal.Inc()
	ProjectJoinsTotal.WithLabelValues("created").Inc()
	SetBuildInfo("test", "abc", "now")

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	text := string(body)
	assert.True(t, strings.Contains(text, "collabhub_ideas_created_total"))
	assert.True(t, strings.Contains(text, `collabhub_projects_joins_total{result="created"}`))
	assert.True(t, strings.Contains(text, `collabhub_build_info{build_time="now",commit="abc",version="test"} 1`))
}

func TestProjectJoinsTotal_Labels(t *testing.T) {
	before := testutil.ToFloat64(ProjectJoinsTotal.WithLabelValues("duplicate"))
	ProjectJoinsTotal.WithLabelValues("duplicate").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ProjectJoinsTotal.WithLabelValues("duplicate")))
}

func TestHandler_Index(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CollabHub Metrics")
}
