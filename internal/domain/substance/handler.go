package substance

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinrx/clinrx/internal/platform/api"
	"github.com/clinrx/clinrx/internal/platform/auth"
	"github.com/clinrx/clinrx/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	read := g.Group("", auth.RequirePermission(auth.ReadPrescriptions))
	read.GET("/substance", h.List)
	read.GET("/substance/:id/relation", h.Relations)

	admin := g.Group("", auth.RequirePermission(auth.AdminSubstances))
	admin.PUT("/relation/:sctidA/:sctidB/:kind", h.UpsertRelation)
}

func int64Param(c echo.Context, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, api.InvalidParams("invalid " + name)
	}
	return v, nil
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), c.QueryParam("name"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return api.OK(c, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Relations(c echo.Context) error {
	id, err := int64Param(c, "id")
	if err != nil {
		return err
	}
	rels, err := h.svc.Relations(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return api.OK(c, rels)
}

func (h *Handler) UpsertRelation(c echo.Context) error {
	a, err := int64Param(c, "sctidA")
	if err != nil {
		return err
	}
	b, err := int64Param(c, "sctidB")
	if err != nil {
		return err
	}
	var body struct {
		Text   string `json:"text"`
		Level  string `json:"level"`
		Active *bool  `json:"active"`
	}
	if err := c.Bind(&body); err != nil {
		return api.InvalidParams("invalid body")
	}
	uid := auth.UserIDFromContext(c.Request().Context())
	rel := &Relation{
		SctidA: a, SctidB: b, Kind: c.Param("kind"),
		Text: body.Text, Level: body.Level, Active: true, Author: &uid,
	}
	if body.Active != nil {
		rel.Active = *body.Active
	}
	if err := h.svc.UpsertRelation(c.Request().Context(), rel); err != nil {
		return err
	}
	return api.OK(c, rel)
}
