package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinrx/clinrx/internal/config"
)

func testConfig(env string) *config.Config {
	return &config.Config{
		Env:               env,
		JWTSecret:         "test-secret",
		AuthIssuer:        "clinrx",
		DefaultSchema:     "hospital_a",
		CORSOrigins:       []string{"*"},
		RateLimitRPS:      100,
		RateLimitBurst:    100,
		RelationCacheSize: 16,
		CacheTTL:          time.Hour,
		BodyLimit:         "1M",
		IngestBodyLimit:   "20M",
	}
}

func TestBuildServer_RegistersRoutes(t *testing.T) {
	e, err := buildServer(testConfig("development"), zerolog.Nop(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	registered := make(map[string]bool)
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	want := []string{
		"GET /health",
		"GET /health/db",
		"GET /metrics",
		"GET /api/v1/segments",
		"PUT /api/v1/segments/:id/exams/:type",
		"GET /api/v1/drugs",
		"PUT /api/v1/drugs/:id/attributes/:segment",
		"GET /api/v1/substance/:id/relation",
		"GET /api/v1/patient/:admission",
		"GET /api/v1/exams/:admission",
		"GET /api/v1/outliers/:segment/:drug",
		"POST /api/v1/outliers/generate/:segment",
		"GET /api/v1/prescriptions/:id",
		"POST /api/v1/prescriptions/:id/check",
		"POST /api/v1/prescriptions/aggregate",
		"POST /api/v1/ingest/prescriptions",
		"POST /api/v1/intervention",
		"POST /api/v1/intervention/outcome/:id",
		"GET /api/v1/intervention/outcome-data/:id",
		"GET /api/v1/notes/:admission/summary/:kind",
		"POST /api/v1/ingest/notes",
	}
	for _, route := range want {
		if !registered[route] {
			t.Errorf("route %s not registered", route)
		}
	}
}

func TestBuildServer_Health(t *testing.T) {
	e, err := buildServer(testConfig("production"), zerolog.Nop(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestBuildServer_RequiresTokenOutsideDev(t *testing.T) {
	e, err := buildServer(testConfig("production"), zerolog.Nop(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/segments", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}
