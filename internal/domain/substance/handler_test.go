package substance

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHandler_UpsertRelation(t *testing.T) {
	svc, repo := newTestService(t)
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"text":"QT longo","level":"medium"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("sctidA", "sctidB", "kind")
	c.SetParamValues("20", "30", "it")

	if err := h.UpsertRelation(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.relations) != 1 || !repo.relations[0].Active {
		t.Errorf("expected one active relation, got %+v", repo.relations)
	}
}

func TestHandler_Relations_InvalidID(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc)
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("x")
	if err := h.Relations(c); err == nil {
		t.Error("expected error")
	}
}
