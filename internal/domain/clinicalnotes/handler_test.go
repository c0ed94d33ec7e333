package clinicalnotes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"golang.org/x/text/encoding/charmap"
)

func TestHandler_Ingest_Latin1(t *testing.T) {
	svc, repo, _ := newFixture()
	h := NewHandler(svc)

	body, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(
		`[{"id": 9, "admissionNumber": 77, "date": "2024-03-10T08:00:00Z", "text": "Em diálise"}]`))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.Ingest(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if len(repo.notes) != 1 || repo.notes[0].Text != "Em diálise" {
		t.Fatalf("expected decoded text, got %+v", repo.notes)
	}
	if repo.notes[0].Annotations[KindDialysis] != 1 {
		t.Errorf("expected a dialysis annotation, got %v", repo.notes[0].Annotations)
	}
}

func TestHandler_Ingest_BadBody(t *testing.T) {
	svc, _, _ := newFixture()
	h := NewHandler(svc)
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"id":1}`))), httptest.NewRecorder())
	if err := h.Ingest(c); err == nil {
		t.Error("expected error")
	}
}

func TestHandler_Summary(t *testing.T) {
	svc, _, _ := newFixture()
	seed(t, svc)
	h := NewHandler(svc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := echo.New().NewContext(req.WithContext(tenantCtx()), rec)
	c.SetParamNames("admission", "kind")
	c.SetParamValues("77", "diet")
	if err := h.Summary(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var env struct {
		Data Summary `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &env)
	if env.Data.Kind != KindDiet || len(env.Data.Excerpts) != 2 {
		t.Errorf("unexpected summary: %+v", env.Data)
	}

	c = echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("admission", "kind")
	c.SetParamValues("abc", "diet")
	if err := h.Summary(c); err == nil {
		t.Error("expected error for a bad admission")
	}
}

func TestHandler_List(t *testing.T) {
	svc, _, _ := newFixture()
	seed(t, svc)
	h := NewHandler(svc)

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/?limit=1", nil), rec)
	c.SetParamNames("admission")
	c.SetParamValues("77")
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var env struct {
		Data struct {
			Items   []Note `json:"items"`
			Total   int    `json:"total"`
			HasMore bool   `json:"hasMore"`
		} `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &env)
	if env.Data.Total != 2 || len(env.Data.Items) != 1 || !env.Data.HasMore {
		t.Errorf("unexpected page: %+v", env.Data)
	}
}
