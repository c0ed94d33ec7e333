package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		roles []string
		perm  Permission
		want  bool
	}{
		{[]string{RoleAdmin}, AdminSubstances, true},
		{[]string{RolePharmacist}, WriteInterventions, true},
		{[]string{RolePharmacist}, AdminSubstances, false},
		{[]string{RoleReadonly}, ReadPrescriptions, true},
		{[]string{RoleReadonly}, WritePrescriptions, false},
		{[]string{RoleReadonly}, WriteInterventions, false},
		{[]string{RoleCurator}, AdminSubstances, true},
		{[]string{RoleSupport}, Ingest, true},
		{[]string{"READONLY"}, ReadReports, true},
		{[]string{"unknown"}, ReadPrescriptions, false},
		{nil, ReadPrescriptions, false},
		{[]string{RoleReadonly, RolePharmacist}, WritePrescriptions, true},
	}
	for _, tt := range tests {
		if got := HasPermission(tt.roles, tt.perm); got != tt.want {
			t.Errorf("HasPermission(%v, %s) = %v, want %v", tt.roles, tt.perm, got, tt.want)
		}
	}
}

func TestRequirePermission(t *testing.T) {
	e := echo.New()
	handler := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithUser(context.Background(), 7, []string{RoleReadonly}))
	c := e.NewContext(req, httptest.NewRecorder())
	if err := RequirePermission(WriteInterventions)(handler)(c); err == nil {
		t.Error("readonly user must not write interventions")
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithUser(context.Background(), 7, []string{RolePharmacist}))
	rec := httptest.NewRecorder()
	c = e.NewContext(req, rec)
	if err := RequirePermission(AdminDrugs, WriteInterventions)(handler)(c); err != nil {
		t.Errorf("pharmacist should pass with any matching permission: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
