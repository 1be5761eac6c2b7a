package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/collabhub/collabhub/internal/metrics"
)

func TestPrometheusMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMiddleware)
	r.Get("/api/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	})

	route := "/api/projects/{id}"
	ok := metrics.HTTPRequestsTotal.WithLabelValues("GET", route, "200")
	missing := metrics.HTTPRequestsTotal.WithLabelValues("GET", unmatchedRoute, "404")
	okBefore := testutil.ToFloat64(ok)
	missingBefore := testutil.ToFloat64(missing)

	for _, path := range []string{"/api/projects/a", "/api/projects/b", "/nope/1", "/nope/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	if got := testutil.ToFloat64(ok) - okBefore; got != 2 {
		t.Errorf("requests for %s = %v, want 2", route, got)
	}
	if got := testutil.ToFloat64(missing) - missingBefore; got != 2 {
		t.Errorf("unmatched requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.HTTPRequestsInFlight); got != 0 {
		t.Errorf("in-flight gauge = %v after requests finished", got)
	}
}

func TestPrometheusMiddleware_SharesLoggerWriter(t *testing.T) {
	var seen http.ResponseWriter
	h := RequestLogger(false)(PrometheusMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	rw, ok := seen.(*responseWriter)
	if !ok {
		t.Fatalf("handler got %T, want *responseWriter", seen)
	}
	if rw.status != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rw.status, http.StatusTeapot)
	}
	if rw.size != len("short and stout") {
		t.Errorf("size = %d, want %d", rw.size, len("short and stout"))
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("recorded code = %d", rec.Code)
	}
}
