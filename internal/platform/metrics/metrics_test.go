package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/clinrx/clinrx/internal/platform/api"
)

func TestMiddleware_CountsByRoutePattern(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/segments/3", nil), httptest.NewRecorder())
	c.SetPath("/api/v1/segments/:id")

	before := testutil.ToFloat64(HTTPRequestTotals.WithLabelValues(http.MethodGet, "/api/v1/segments/:id", "200"))
	err := Middleware()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after := testutil.ToFloat64(HTTPRequestTotals.WithLabelValues(http.MethodGet, "/api/v1/segments/:id", "200"))
	if after-before != 1 {
		t.Errorf("expected counter to grow by 1, grew by %v", after-before)
	}
}

func TestMiddleware_UsesErrorStatus(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/intervention", nil), httptest.NewRecorder())
	c.SetPath("/api/v1/intervention")

	labels := []string{http.MethodPost, "/api/v1/intervention", "400"}
	before := testutil.ToFloat64(HTTPRequestTotals.WithLabelValues(labels...))
	_ = Middleware()(func(c echo.Context) error { return api.InvalidParams("no reason") })(c)
	if got := testutil.ToFloat64(HTTPRequestTotals.WithLabelValues(labels...)) - before; got != 1 {
		t.Errorf("expected one 400 sample, got %v", got)
	}
}

func TestHandler_ExposesCollectors(t *testing.T) {
	AlertsTotal.WithLabelValues("allergy", "high").Inc()

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/metrics", nil), rec)
	if err := Handler()(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "clinrx_alerts_total") {
		t.Error("expected clinrx_alerts_total in exposition")
	}
}
