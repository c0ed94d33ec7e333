package auth

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinrx/clinrx/internal/platform/api"
)

const (
	RoleAdmin      = "admin"
	RolePharmacist = "pharmacist"
	RoleReadonly   = "readonly"
	RoleSupport    = "support"
	RoleCurator    = "curator"
)

type Permission string

const (
	ReadPrescriptions   Permission = "read_prescriptions"
	WritePrescriptions  Permission = "write_prescriptions"
	ReadReports         Permission = "read_reports"
	WriteInterventions  Permission = "write_interventions"
	WriteDrugAttributes Permission = "write_drug_attributes"
	WritePatient        Permission = "write_patient"
	AdminDrugs          Permission = "admin_drugs"
	AdminSubstances     Permission = "admin_substances"
	AdminSegments       Permission = "admin_segments"
	Ingest              Permission = "ingest"
)

var readPermissions = []Permission{ReadPrescriptions, ReadReports}

var rolePermissions = map[string][]Permission{
	RoleAdmin: {
		ReadPrescriptions, WritePrescriptions, ReadReports, WriteInterventions,
		WriteDrugAttributes, WritePatient, AdminDrugs, AdminSubstances, AdminSegments, Ingest,
	},
	RolePharmacist: {
		ReadPrescriptions, WritePrescriptions, ReadReports, WriteInterventions,
		WriteDrugAttributes, WritePatient,
	},
	RoleReadonly: readPermissions,
	RoleSupport:  append([]Permission{AdminSegments, AdminDrugs, Ingest}, readPermissions...),
	RoleCurator:  append([]Permission{AdminSubstances, WriteDrugAttributes}, readPermissions...),
}

// HasPermission reports whether any of roles grants p. Unknown roles grant nothing.
func HasPermission(roles []string, p Permission) bool {
	for _, role := range roles {
		for _, granted := range rolePermissions[strings.ToLower(role)] {
			if granted == p {
				return true
			}
		}
	}
	return false
}

// Can checks p against the roles of the authenticated user.
func Can(ctx context.Context, p Permission) bool {
	return HasPermission(RolesFromContext(ctx), p)
}

// RequirePermission rejects requests whose roles grant none of perms.
func RequirePermission(perms ...Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			for _, p := range perms {
				if Can(ctx, p) {
					return next(c)
				}
			}
			return api.Forbidden("user is not allowed to perform this action")
		}
	}
}
