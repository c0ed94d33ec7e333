package prescription

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_List(t *testing.T) {
	fx := newFixture()
	h := NewHandler(fx.svc)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/?date=2024-03-10&idSegment=1&idDept=1,2&order=score", nil), rec)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var env struct {
		Data struct {
			Total int `json:"total"`
		} `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &env)
	if env.Data.Total != 2 {
		t.Errorf("expected 2, got %d", env.Data.Total)
	}
}

func TestHandler_List_BadQuery(t *testing.T) {
	fx := newFixture()
	h := NewHandler(fx.svc)
	for _, q := range []string{"?date=10/03/2024", "?idSegment=x", "?idDept=1,a", "?agg=maybe"} {
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/"+q, nil), httptest.NewRecorder())
		if err := h.List(c); err == nil {
			t.Errorf("%s: expected error", q)
		}
	}
}

func TestHandler_Get(t *testing.T) {
	fx := newFixture()
	h := NewHandler(fx.svc)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := h.Get(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var env struct {
		Status string `json:"status"`
		Data   struct {
			ID    int64 `json:"id"`
			Drugs []struct {
				ID     int64 `json:"id"`
				Alerts []struct {
					Type string `json:"type"`
				} `json:"alerts"`
			} `json:"drugs"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Status != "success" || env.Data.ID != 1 || len(env.Data.Drugs) != 1 {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_Check_DefaultsToChecked(t *testing.T) {
	fx := newFixture()
	h := NewHandler(fx.svc)
	c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("2")

	if err := h.Check(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fx.repo.prescriptions[2].Status != StatusChecked {
		t.Error("expected prescription checked")
	}
}

func TestHandler_Check_Uncheck(t *testing.T) {
	fx := newFixture()
	fx.repo.prescriptions[2].Status = StatusChecked
	h := NewHandler(fx.svc)
	c := echo.New().NewContext(jsonRequest(http.MethodPost, `{"status":"0"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("2")

	if err := h.Check(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fx.repo.prescriptions[2].Status != StatusPending {
		t.Error("expected prescription pending")
	}
}

func TestHandler_Aggregate(t *testing.T) {
	fx := newFixture()
	h := NewHandler(fx.svc)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(jsonRequest(http.MethodPost, `{"admissionNumber":77,"date":"2024-03-10"}`), rec)

	if err := h.Aggregate(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantID, _ := AggregateID(fixedNow, 1, 77)
	if _, ok := fx.repo.prescriptions[wantID]; !ok {
		t.Error("aggregate not stored")
	}

	bad := echo.New().NewContext(jsonRequest(http.MethodPost, `{"admissionNumber":77,"date":"yesterday"}`), httptest.NewRecorder())
	if err := h.Aggregate(bad); err == nil {
		t.Error("expected date error")
	}
}

func TestHandler_UpdateNotes(t *testing.T) {
	fx := newFixture()
	h := NewHandler(fx.svc)
	c := echo.New().NewContext(jsonRequest(http.MethodPut, `{"notes":"check renal dose"}`), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("11")

	if err := h.UpdateNotes(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := fx.repo.notes[11]; n == nil || *n != "check renal dose" {
		t.Errorf("unexpected notes %v", n)
	}
}

func TestHandler_Ingest(t *testing.T) {
	fx := newFixture()
	h := NewHandler(fx.svc)
	body := `[{"id":50,"admissionNumber":80,"date":"2024-03-10T08:00:00Z","lines":[{"id":501,"idDrug":10,"dose":500,"idMeasureUnit":"mg","source":"Medicamentos"}]}]`
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(jsonRequest(http.MethodPost, body), rec)

	if err := h.Ingest(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if l := fx.repo.lines[501]; l == nil || l.IDPrescription != 50 {
		t.Errorf("line not stored: %+v", l)
	}
}
