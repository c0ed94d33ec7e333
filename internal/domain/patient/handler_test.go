package patient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestHandler_Get(t *testing.T) {
	svc, repo := newTestService()
	birth := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.patients[5] = &Patient{AdmissionNumber: 5, Birthdate: &birth}
	h := NewHandler(svc)

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("admission")
	c.SetParamValues("5")

	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var env struct {
		Data struct {
			Age int `json:"age"`
		} `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &env)
	if env.Data.Age != 24 {
		t.Errorf("expected age 24, got %d", env.Data.Age)
	}
}

func TestHandler_Get_InvalidAdmission(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("admission")
	c.SetParamValues("-3")
	if err := h.Get(c); err == nil {
		t.Error("expected error")
	}
}

func TestHandler_Ingest(t *testing.T) {
	svc, repo := newTestService()
	h := NewHandler(svc)
	body := `[{"admissionNumber":11,"idPatient":1,"weight":60},{"admissionNumber":12,"idPatient":2}]`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := h.Ingest(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated || len(repo.patients) != 2 {
		t.Errorf("expected 201 and 2 patients, got %d and %d", rec.Code, len(repo.patients))
	}
}
