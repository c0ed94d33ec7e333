package drug

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *mockRepo, *echo.Echo) {
	svc, repo := newTestService()
	return NewHandler(svc), repo, echo.New()
}

func TestHandler_List(t *testing.T) {
	h, repo, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=10", nil), rec)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var env struct {
		Data struct {
			Total int     `json:"total"`
			Items []*Drug `json:"items"`
		} `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &env)
	if env.Data.Total != len(repo.drugs) {
		t.Errorf("expected %d, got %d", len(repo.drugs), env.Data.Total)
	}
}

func TestHandler_List_InvalidSegment(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?idSegment=x", nil), httptest.NewRecorder())
	if err := h.List(c); err == nil {
		t.Error("expected error for invalid segment")
	}
}

func TestHandler_UpsertAttributes(t *testing.T) {
	h, repo, e := newTestHandler()
	body := `{"maxDose":4000,"idMeasureUnit":"mg","antimicro":true}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id", "segment")
	c.SetParamValues("1", "3")

	if err := h.UpsertAttributes(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := repo.attrs[attrKey{1, 3}]
	if a == nil || !a.Antimicro || *a.MaxDose != 4000 {
		t.Errorf("unexpected stored attributes: %+v", a)
	}
}

func TestHandler_AttributesList_InvalidFlag(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?hasPrice=maybe", nil), httptest.NewRecorder())
	if err := h.AttributesList(c); err == nil {
		t.Error("expected error for invalid hasPrice")
	}
}

func TestHandler_UpdateUnitFactor(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"factor":2}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id", "unit")
	c.SetParamValues("1", "g")

	if err := h.UpdateUnitFactor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
